package records

import (
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/ticket-sync/internal/domain"
)

// timeLayout is how the record store renders timestamps, always in UTC.
const timeLayout = "2006-01-02 15:04:05"

type timestamp struct {
	time.Time
}

func (t *timestamp) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.ParseInLocation(timeLayout, raw, time.UTC)
	if err != nil {
		return fmt.Errorf("records: unrecognized timestamp %q", raw)
	}
	t.Time = parsed
	return nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

type itemsResponse struct {
	Filtered int         `json:"filtered"`
	Total    int         `json:"total"`
	Items    []itemBadge `json:"items"`
}

type itemBadge struct {
	ItemID          int64  `json:"item_id"`
	ExternalID      string `json:"external_id"`
	Title           string `json:"title"`
	Link            string `json:"link"`
	CurrentRevision struct {
		CreatedOn timestamp `json:"created_on"`
	} `json:"current_revision"`
}

func (b itemBadge) toDomain() domain.DestinationRecord {
	return domain.DestinationRecord{
		ID:           b.ItemID,
		ExternalID:   b.ExternalID,
		Title:        b.Title,
		Link:         b.Link,
		LastModified: b.CurrentRevision.CreatedOn.Time,
	}
}

type fieldValuesJSON struct {
	FieldID int64            `json:"field_id"`
	Values  []map[string]any `json:"values"`
}

type itemWriteJSON struct {
	ExternalID string            `json:"external_id"`
	Fields     []fieldValuesJSON `json:"fields"`
	Tags       []string          `json:"tags,omitempty"`
	FileIDs    []int64           `json:"file_ids,omitempty"`
}

func newItemWrite(write domain.RecordWrite) itemWriteJSON {
	body := itemWriteJSON{ExternalID: write.ExternalID, Tags: write.Tags}
	for _, field := range write.Fields {
		body.Fields = append(body.Fields, fieldValuesJSON{
			FieldID: field.FieldID,
			Values:  []map[string]any{{"value": field.Value}},
		})
	}
	return body
}

type itemCreatedJSON struct {
	ItemID int64 `json:"item_id"`
}

type profileJSON struct {
	ProfileID int64    `json:"profile_id"`
	UserID    int64    `json:"user_id"`
	Name      string   `json:"name"`
	Mail      []string `json:"mail"`
}

func (p profileJSON) toDomain() domain.DestinationContact {
	contact := domain.DestinationContact{ProfileID: p.ProfileID, UserID: p.UserID, Name: p.Name}
	if len(p.Mail) > 0 {
		contact.Email = p.Mail[0]
	}
	return contact
}

type commentJSON struct {
	CommentID int64  `json:"comment_id"`
	Value     string `json:"value"`
}

type commentCreateJSON struct {
	Value   string  `json:"value"`
	FileIDs []int64 `json:"file_ids,omitempty"`
}

type fileJSON struct {
	FileID int64 `json:"file_id"`
}

type attachJSON struct {
	RefType domain.ReferenceType `json:"ref_type"`
	RefID   int64                `json:"ref_id"`
}
