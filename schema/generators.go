package schema

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// IDGenerator produces primary key values for records created without one.
type IDGenerator interface {
	Generate() (any, error)
	Type() string
}

// UUIDGenerator generates random (version 4) UUIDs.
type UUIDGenerator struct{}

func (g UUIDGenerator) Generate() (any, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("failed to generate UUID: %w", err)
	}
	return id, nil
}

func (g UUIDGenerator) Type() string { return "uuid" }

// ULIDGenerator generates monotonic ULIDs in their 26 character text form.
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *ULIDGenerator) Generate() (any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), g.entropy)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ULID: %w", err)
	}
	return id.String(), nil
}

func (g *ULIDGenerator) Type() string { return "ulid" }

// SnowflakeGenerator generates 63-bit time ordered IDs:
// 41 bits of milliseconds since 2023-01-01, 10 bits machine, 12 bits sequence.
type SnowflakeGenerator struct {
	mu        sync.Mutex
	machineID uint64
	sequence  uint64
	lastTime  uint64
	epoch     uint64
}

func NewSnowflakeGenerator(machineID uint64) *SnowflakeGenerator {
	return &SnowflakeGenerator{
		machineID: machineID & 0x3FF,
		epoch:     uint64(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()),
	}
}

func (g *SnowflakeGenerator) Generate() (any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := uint64(time.Now().UnixMilli())
	if now < g.lastTime {
		return nil, fmt.Errorf("clock moved backwards")
	}
	if now == g.lastTime {
		g.sequence = (g.sequence + 1) & 0xFFF
		if g.sequence == 0 {
			for now <= g.lastTime {
				now = uint64(time.Now().UnixMilli())
			}
		}
	} else {
		g.sequence = 0
	}
	g.lastTime = now

	return int64(((now - g.epoch) << 22) | (g.machineID << 12) | g.sequence), nil
}

func (g *SnowflakeGenerator) Type() string { return "snowflake" }

// NanoIDGenerator generates URL-safe random strings.
type NanoIDGenerator struct {
	size     int
	alphabet string
}

func NewNanoIDGenerator(size int, alphabet string) *NanoIDGenerator {
	if size <= 0 {
		size = 21
	}
	if alphabet == "" {
		alphabet = "_-0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	}
	return &NanoIDGenerator{size: size, alphabet: alphabet}
}

func (g *NanoIDGenerator) Generate() (any, error) {
	buf := make([]byte, g.size)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = g.alphabet[int(b)%len(g.alphabet)]
	}
	return string(buf), nil
}

func (g *NanoIDGenerator) Type() string { return "nanoid" }

// GeneratorRegistry holds generators by name.
type GeneratorRegistry struct {
	mu         sync.RWMutex
	generators map[string]IDGenerator
}

var generators = NewGeneratorRegistry()

func NewGeneratorRegistry() *GeneratorRegistry {
	r := &GeneratorRegistry{generators: make(map[string]IDGenerator)}
	r.Register("uuid", UUIDGenerator{})
	r.Register("ulid", NewULIDGenerator())
	r.Register("snowflake", NewSnowflakeGenerator(1))
	r.Register("nanoid", NewNanoIDGenerator(21, ""))
	return r
}

func (r *GeneratorRegistry) Register(name string, g IDGenerator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators[name] = g
}

func (r *GeneratorRegistry) Get(name string) (IDGenerator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.generators[name]
	return g, ok
}

// RegisterGenerator makes a generator available to `generator:<name>` tags.
func RegisterGenerator(name string, g IDGenerator) {
	generators.Register(name, g)
}

// GenerateID runs the named generator.
func GenerateID(name string) (any, error) {
	g, ok := generators.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown generator type: %s", name)
	}
	return g.Generate()
}
