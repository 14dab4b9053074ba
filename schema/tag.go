package schema

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// DefaultTagName is the struct tag key read during discovery.
const DefaultTagName = "db"

// ParsedTag is the mapping configuration declared on one struct field.
type ParsedTag struct {
	ColumnName string // empty means derive from the field name
	Skip       bool   // db:"-"
	Key        bool
	Generated  bool // server assigns the value on insert
	Required   bool
	Length     *int
	Generator  string // client-side key generator (uuid, ulid)
}

// TagParser parses field tags and caches the result per tag value.
type TagParser struct {
	tagName string
	cache   map[string]*ParsedTag
	cacheMu sync.RWMutex
}

func NewTagParser(tagName string) *TagParser {
	if tagName == "" {
		tagName = DefaultTagName
	}
	return &TagParser{
		tagName: tagName,
		cache:   make(map[string]*ParsedTag, 64),
	}
}

// ParseTag parses the configured tag key of a field.
//
// Supported syntax:
//
//	`db:"EmployeeName"`              // column name
//	`db:"column:EmployeeName"`       // explicit column name
//	`db:"key;generated"`             // server-generated key
//	`db:"Code;key;length:10"`        // column name plus options
//	`db:"required;max_length:50"`    // non-null text bounded to 50
//	`db:"key;generator:uuid"`        // client-generated key
//	`db:"-"`                         // not mapped
//
// The returned value is shared and must not be modified.
func (p *TagParser) ParseTag(tag reflect.StructTag) (*ParsedTag, error) {
	tagValue := strings.TrimSpace(tag.Get(p.tagName))
	if tagValue == "" {
		return &ParsedTag{}, nil
	}

	p.cacheMu.RLock()
	if cached, ok := p.cache[tagValue]; ok {
		p.cacheMu.RUnlock()
		return cached, nil
	}
	p.cacheMu.RUnlock()

	parsed, err := p.parseTagValue(tagValue)
	if err != nil {
		return nil, err
	}

	p.cacheMu.Lock()
	p.cache[tagValue] = parsed
	p.cacheMu.Unlock()

	return parsed, nil
}

func (p *TagParser) parseTagValue(tagValue string) (*ParsedTag, error) {
	if tagValue == "-" {
		return &ParsedTag{Skip: true}, nil
	}

	parsed := &ParsedTag{}
	for _, option := range strings.Split(tagValue, ";") {
		option = strings.TrimSpace(option)
		if option == "" {
			continue
		}

		if idx := strings.IndexByte(option, ':'); idx != -1 {
			key := strings.TrimSpace(option[:idx])
			value := strings.TrimSpace(option[idx+1:])
			if err := p.parseKeyValue(parsed, key, value); err != nil {
				return nil, err
			}
			continue
		}

		p.parseFlag(parsed, option)
	}

	return parsed, nil
}

func (p *TagParser) parseFlag(tag *ParsedTag, flag string) {
	switch strings.ToLower(flag) {
	case "key", "primary", "primary_key":
		tag.Key = true
	case "generated", "identity":
		tag.Generated = true
	case "required", "not_null":
		tag.Required = true
	default:
		// The first bare word names the column.
		if tag.ColumnName == "" {
			tag.ColumnName = flag
		}
	}
}

func (p *TagParser) parseKeyValue(tag *ParsedTag, key, value string) error {
	switch strings.ToLower(key) {
	case "column", "name":
		if value == "" {
			return fmt.Errorf("empty column name")
		}
		tag.ColumnName = value
	case "length", "max_length", "max_len":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid %s value '%s': must be integer", key, value)
		}
		if n < 0 {
			return fmt.Errorf("invalid %s value %d: must be non-negative", key, n)
		}
		tag.Length = &n
	case "generator", "gen":
		tag.Generator = value
	default:
		return fmt.Errorf("unknown tag option '%s'", key)
	}
	return nil
}

// TagName returns the struct tag key the parser reads.
func (p *TagParser) TagName() string { return p.tagName }

// CacheSize returns the number of distinct tag values parsed so far.
func (p *TagParser) CacheSize() int {
	p.cacheMu.RLock()
	defer p.cacheMu.RUnlock()
	return len(p.cache)
}
