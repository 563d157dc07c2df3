package session

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// Key selects a generated key column. It is either a KeyName or a KeyIndex.
type Key interface {
	generatedKey()
}

// KeyName selects a generated key by column name.
type KeyName string

// KeyIndex selects a generated key by 1-based column index.
type KeyIndex int

func (KeyName) generatedKey()  {}
func (KeyIndex) generatedKey() {}

// generatedKeyColumn names the single column of a LastInsertId key row.
const generatedKeyColumn = "GENERATED_KEY"

type keyMode int

const (
	keysNone keyMode = iota
	keysByName
	keysGeneric
)

func (m keyMode) String() string {
	switch m {
	case keysByName:
		return "by-name"
	case keysGeneric:
		return "generic"
	default:
		return "none"
	}
}

// keySource is how a prepared statement hands back generated keys.
type keySource int

const (
	sourceNone keySource = iota
	sourceReturning
	sourceLastInsertID
)

var returningClause = regexp.MustCompile(`(?i)\breturning\b`)

// chooseKeyMode decides how generated keys are requested. The settings are
// read on every call so quirk table changes apply immediately.
func chooseKeyMode(settings Settings, attrs ConnectionAttributes, requested bool, keyName string) keyMode {
	switch {
	case !requested:
		return keysNone
	case keyName != "" && settings.keyByName(attrs.ResolvedDriverName()):
		return keysByName
	default:
		return keysGeneric
	}
}

// preparedSQL returns the SQL to prepare for a key mode and where the keys
// will come from.
func preparedSQL(template string, mode keyMode, keyName string, settings Settings, attrs ConnectionAttributes) (string, keySource) {
	switch mode {
	case keysByName:
		if returningClause.MatchString(template) {
			return template, sourceReturning
		}
		return trimStatement(template) + " RETURNING " + keyName, sourceReturning
	case keysGeneric:
		if !settings.returningAll(attrs.ResolvedDriverName()) {
			return template, sourceLastInsertID
		}
		if returningClause.MatchString(template) {
			return template, sourceReturning
		}
		return trimStatement(template) + " RETURNING *", sourceReturning
	default:
		return template, sourceNone
	}
}

// trimStatement drops trailing whitespace and semicolons so a clause can be
// appended.
func trimStatement(template string) string {
	return strings.TrimRightFunc(template, func(r rune) bool {
		return r == ';' || unicode.IsSpace(r)
	})
}

// resolveKey reads a generated key from a key row. A failed lookup by name
// or index falls back to index 1.
func resolveKey(log *zap.Logger, key Key, row *Row) (int64, error) {
	switch k := key.(type) {
	case KeyName:
		v, err := row.Int64(string(k))
		if err == nil {
			return v, nil
		}
		log.Warn("failed to retrieve generated key by name, retrying with index 1",
			zap.String("key", string(k)), zap.Error(err))
	case KeyIndex:
		v, err := row.Int64At(int(k))
		if err == nil {
			return v, nil
		}
		log.Warn("failed to retrieve generated key by index, retrying with index 1",
			zap.Int("key", int(k)), zap.Error(err))
	default:
		return 0, fmt.Errorf("%w: %T", ErrInvalidKey, key)
	}
	return row.Int64At(1)
}
