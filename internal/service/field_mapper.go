package service

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sync/internal/config"
	"github.com/spec-kit/ticket-sync/internal/domain"
	apperrors "github.com/spec-kit/ticket-sync/pkg/util"
)

const (
	// quoteDelimiter starts the quoted or forwarded block the helpdesk appends
	// to mailed-in descriptions.
	quoteDelimiter     = "------------------"
	abbreviationMarker = "..."
	requesterNameMax   = 128
)

// The location ends at the first line terminator, CR included.
var submittedFromPattern = regexp.MustCompile(`Submitted from: ([^\r\n\x{0085}\x{2028}\x{2029}]*)`)

// TypeMap translates raw helpdesk ticket types into record store option labels.
// It is copied on construction and never written afterwards.
type TypeMap struct {
	values map[string]string
}

// NewTypeMap copies src into an immutable TypeMap.
func NewTypeMap(src map[string]string) TypeMap {
	values := make(map[string]string, len(src))
	for k, v := range src {
		values[k] = v
	}
	return TypeMap{values: values}
}

// Lookup returns the label for a raw type value.
func (m TypeMap) Lookup(raw string) (string, bool) {
	label, ok := m.values[raw]
	return label, ok
}

// TicketLinks carries the resolved references a ticket record points to.
type TicketLinks struct {
	AssigneeProfileID *int64
	RequesterRecordID *int64
}

// FieldMapper derives record field values from helpdesk entities. Its output
// depends only on its inputs and the profile it was built with.
type FieldMapper struct {
	profile   config.Profile
	types     TypeMap
	ticketURL string
	logger    *zap.Logger
}

// NewFieldMapper constructs a mapper for profile. sourceBaseURL is the helpdesk
// origin used for permalinks.
func NewFieldMapper(profile config.Profile, sourceBaseURL string, logger *zap.Logger) *FieldMapper {
	return &FieldMapper{
		profile:   profile,
		types:     NewTypeMap(profile.TypeMap),
		ticketURL: strings.TrimRight(sourceBaseURL, "/") + "/tickets/",
		logger:    logger,
	}
}

// Title shapes a ticket description into a bounded record title.
func (m *FieldMapper) Title(description string) string {
	title := description
	if m.profile.StripQuoted {
		title = StripQuoted(title)
	}
	if m.profile.TitleSingleLine {
		title = CollapseWhitespace(title)
	}
	return Abbreviate(title, m.profile.TitleMaxLength)
}

// Permalink points back at the ticket on the helpdesk.
func (m *FieldMapper) Permalink(ticketID int64) string {
	return m.ticketURL + strconv.FormatInt(ticketID, 10)
}

// TicketFields builds the full field set of a ticket record.
func (m *FieldMapper) TicketFields(ticket domain.SourceTicket, links TicketLinks) []domain.FieldValue {
	schema := m.profile.Ticket
	description := ticket.Description
	if m.profile.StripQuoted {
		description = StripQuoted(description)
	}

	fields := []domain.FieldValue{
		{FieldID: schema.Title, Value: m.Title(ticket.Description)},
		{FieldID: schema.Description, Value: description},
	}
	if location, ok := SubmittedFrom(ticket.Description); ok {
		fields = append(fields, domain.FieldValue{FieldID: schema.Location, Value: location})
	}
	if links.AssigneeProfileID != nil {
		fields = append(fields, domain.FieldValue{FieldID: schema.Assignee, Value: *links.AssigneeProfileID})
	}
	if links.RequesterRecordID != nil {
		fields = append(fields, domain.FieldValue{FieldID: schema.Requester, Value: *links.RequesterRecordID})
	}
	for _, entry := range ticket.Entries {
		if entry.FieldID != m.profile.TypeFieldID || strings.TrimSpace(entry.Value) == "" {
			continue
		}
		label, ok := m.types.Lookup(entry.Value)
		if !ok {
			m.logger.Info("ticket type omitted", zap.Int64("ticket_id", ticket.ID),
				zap.Error(apperrors.NewUnknownEnumValue("ticket type", entry.Value)))
			continue
		}
		fields = append(fields, domain.FieldValue{FieldID: schema.Type, Value: label})
	}
	if ticket.Status != "" {
		fields = append(fields, domain.FieldValue{FieldID: schema.Status, Value: domain.Humanize(ticket.Status)})
	}
	if ticket.Channel != "" {
		fields = append(fields, domain.FieldValue{FieldID: schema.Source, Value: domain.Humanize(ticket.Channel)})
	}
	fields = append(fields, domain.FieldValue{FieldID: schema.Link, Value: m.Permalink(ticket.ID)})
	return fields
}

// RequesterFields builds the field set of a requester record. photoFileID is
// set only when a photo was migrated for this write.
func (m *FieldMapper) RequesterFields(user domain.SourceUser, photoFileID *int64) []domain.FieldValue {
	schema := m.profile.Requester
	fields := []domain.FieldValue{
		{FieldID: schema.Name, Value: Abbreviate(user.Name, requesterNameMax)},
	}
	if user.Email != "" {
		fields = append(fields, domain.FieldValue{FieldID: schema.Mail, Value: user.Email})
	}
	if user.Phone != "" {
		fields = append(fields, domain.FieldValue{FieldID: schema.Phone, Value: user.Phone})
	}
	if photoFileID != nil {
		fields = append(fields, domain.FieldValue{FieldID: schema.Photo, Value: *photoFileID})
	}
	return fields
}

// PhotoEligible reports whether a user's photo is worth migrating: it must exist
// and must not be the helpdesk's placeholder image.
func (m *FieldMapper) PhotoEligible(user domain.SourceUser) bool {
	if user.PhotoURL == "" {
		return false
	}
	path := user.PhotoURL
	if parsed, err := url.Parse(user.PhotoURL); err == nil {
		path = parsed.Path
	}
	return !strings.HasSuffix(path, m.profile.DefaultPhotoFilename)
}

// Abbreviate shortens s to at most max runes, ending it with "..." when cut.
func Abbreviate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	if max < len(abbreviationMarker)+1 {
		return string(runes[:max])
	}
	return string(runes[:max-len(abbreviationMarker)]) + abbreviationMarker
}

// StripQuoted drops the quoted block that starts at the first dash delimiter.
func StripQuoted(text string) string {
	idx := strings.Index(text, quoteDelimiter)
	if idx == -1 {
		return text
	}
	return strings.TrimSpace(text[:idx])
}

// CollapseWhitespace turns line breaks into spaces and squeezes runs of spaces.
func CollapseWhitespace(text string) string {
	text = strings.NewReplacer("\n", " ", "\r", " ").Replace(text)
	for strings.Contains(text, "  ") {
		text = strings.ReplaceAll(text, "  ", " ")
	}
	return text
}

// SubmittedFrom extracts the location a web-form ticket was filed from.
func SubmittedFrom(description string) (string, bool) {
	match := submittedFromPattern.FindStringSubmatch(description)
	if match == nil {
		return "", false
	}
	return match[1], true
}
