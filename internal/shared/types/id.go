package types

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
)

// ID is a UUID wrapper for type safety
type ID string

// NewID generates a new random ID
func NewID() ID {
	return ID(uuid.New().String())
}

// ParseID parses a string into an ID
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid ID: %w", err)
	}
	// SQL Server returns uniqueidentifier text upper-cased; keep one canonical form.
	return ID(u.String()), nil
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsZero checks if the ID is empty
func (id ID) IsZero() bool {
	return id == ""
}

// Value implements driver.Valuer for database serialization
func (id ID) Value() (driver.Value, error) {
	if id.IsZero() {
		return nil, nil
	}
	return string(id), nil
}

// Scan implements sql.Scanner for database deserialization
func (id *ID) Scan(value interface{}) error {
	if value == nil {
		*id = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		return id.scanText(v)
	case []byte:
		// go-mssqldb hands uniqueidentifier columns back as 16 raw bytes in mixed endianness
		if len(v) == 16 {
			u, err := uuidFromMSSQL(v)
			if err != nil {
				return err
			}
			*id = ID(u.String())
			return nil
		}
		return id.scanText(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ID", value)
	}
}

func (id *ID) scanText(s string) error {
	u, err := uuid.Parse(s)
	if err != nil {
		return fmt.Errorf("cannot scan %q into ID: %w", s, err)
	}
	*id = ID(u.String())
	return nil
}

func uuidFromMSSQL(b []byte) (uuid.UUID, error) {
	swapped := make([]byte, 16)
	copy(swapped, b)
	swapped[0], swapped[1], swapped[2], swapped[3] = b[3], b[2], b[1], b[0]
	swapped[4], swapped[5] = b[5], b[4]
	swapped[6], swapped[7] = b[7], b[6]
	return uuid.FromBytes(swapped)
}
