package bracket

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// StringArray stores a JSON array in a single text column.
type StringArray []string

// Scan implements sql.Scanner for StringArray.
func (a *StringArray) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return errors.New("unsupported type for StringArray")
	}
}

// Value implements driver.Valuer for StringArray.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

type Question struct {
	ID            uuid.UUID   `db:"id" json:"id"`
	Text          string      `db:"text" json:"text"`
	CorrectAnswer string      `db:"correct_answer" json:"-"`
	Distractors   StringArray `db:"distractors" json:"distractors"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
}
