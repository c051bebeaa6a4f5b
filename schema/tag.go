package schema

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// ParsedTag is the parsed form of a `db` struct tag.
type ParsedTag struct {
	ColumnName string // explicit or derived column name
	Skip       bool   // db:"-"

	Primary  bool
	Required bool // rejected on create while still the zero value
	Default  string

	// Timestamps
	AutoNowAdd bool // set on insert
	AutoNow    bool // set on insert and update

	Generator string // uuid, ulid, snowflake, nanoid or a registered name

	Enum *Enum

	// Relationship keys
	ForeignKey string
	LocalKey   string
	Pivot      string
}

// TagParser parses `db` tags and caches the results per field name and tag.
type TagParser struct {
	naming  NamingStrategy
	cache   map[string]*ParsedTag
	cacheMu sync.RWMutex
}

func NewTagParser(naming NamingStrategy) *TagParser {
	return &TagParser{
		naming: naming,
		cache:  make(map[string]*ParsedTag, 128),
	}
}

// ParseTag parses the `db` tag of a field.
//
// Supported syntax:
//
//	`db:"column_name"`                      // column mapping
//	`db:"column:custom;primary"`            // options separated by ';'
//	`db:"generator:uuid"`                   // generated primary key
//	`db:"auto_now_add"` / `db:"auto_now"`   // timestamps
//	`db:"required"`                         // must be set on create
//	`db:"enum:Active=active|Banned=banned"` // enum variants, optionally renamed
//	`db:"foreign_key:author_id;local_key:id;pivot:post_tag"`
//	`db:"-"`                                // skip field
func (p *TagParser) ParseTag(fieldName string, tag reflect.StructTag) (*ParsedTag, error) {
	tagValue, ok := tag.Lookup("db")
	if !ok || tagValue == "" {
		return &ParsedTag{ColumnName: p.naming.ColumnName(fieldName)}, nil
	}

	cacheKey := fieldName + ":" + tagValue
	p.cacheMu.RLock()
	cached, exists := p.cache[cacheKey]
	p.cacheMu.RUnlock()
	if exists {
		return cached, nil
	}

	parsed, err := p.parseTagValue(fieldName, tagValue)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", fieldName, err)
	}

	p.cacheMu.Lock()
	p.cache[cacheKey] = parsed
	p.cacheMu.Unlock()
	return parsed, nil
}

func (p *TagParser) parseTagValue(fieldName, tagValue string) (*ParsedTag, error) {
	if tagValue == "-" {
		return &ParsedTag{Skip: true}, nil
	}

	parsed := &ParsedTag{ColumnName: p.naming.ColumnName(fieldName)}

	// A bare word is a column name unless it is a known flag.
	if !strings.ContainsAny(tagValue, ";:") {
		if !p.parseFlag(parsed, strings.TrimSpace(tagValue)) {
			parsed.ColumnName = strings.TrimSpace(tagValue)
		}
		return parsed, nil
	}

	for _, option := range strings.Split(tagValue, ";") {
		option = strings.TrimSpace(option)
		if option == "" {
			continue
		}
		if idx := strings.IndexByte(option, ':'); idx != -1 {
			key := strings.TrimSpace(option[:idx])
			val := strings.TrimSpace(option[idx+1:])
			if err := p.parseKeyValue(parsed, key, val); err != nil {
				return nil, err
			}
			continue
		}
		if !p.parseFlag(parsed, option) {
			parsed.ColumnName = option
		}
	}
	return parsed, nil
}

func (p *TagParser) parseFlag(tag *ParsedTag, flag string) bool {
	switch flag {
	case "primary", "primary_key":
		tag.Primary = true
	case "required", "not_null", "not null":
		tag.Required = true
	case "auto_now_add":
		tag.AutoNowAdd = true
	case "auto_now":
		tag.AutoNow = true
	default:
		return false
	}
	return true
}

func (p *TagParser) parseKeyValue(tag *ParsedTag, key, val string) error {
	if val == "" {
		return fmt.Errorf("empty value for %q", key)
	}
	switch key {
	case "column", "name":
		tag.ColumnName = val
	case "default":
		tag.Default = val
	case "generator", "gen":
		if _, ok := generators.Get(val); !ok {
			return fmt.Errorf("unknown generator %q", val)
		}
		tag.Generator = val
	case "enum", "in":
		enum, err := parseEnum(val)
		if err != nil {
			return err
		}
		tag.Enum = enum
	case "fk", "foreign_key":
		tag.ForeignKey = val
	case "local_key", "owner_key", "references":
		tag.LocalKey = val
	case "pivot", "join_table":
		tag.Pivot = val
	default:
		return fmt.Errorf("unknown tag option %q", key)
	}
	return nil
}
