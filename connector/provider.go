package connector

import (
	"context"

	"github.com/Konsultn-Engineering/ensemble/dialect"
)

// Provider opens pools for one driver.
type Provider interface {
	Connect(ctx context.Context, config Config) (Connection, error)
	Dialect() dialect.Dialect
}
