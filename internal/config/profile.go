package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Built-in destination schemas.
const (
	ProfilePrimary = "primary"
	ProfileHoist   = "hoist"
)

// Profile describes the destination schema a run writes into: which apps hold
// tickets and requesters, the field ids inside them, and the title shaping rules.
type Profile struct {
	Name    string `yaml:"name"`
	SpaceID int64  `yaml:"space_id"`

	Ticket    TicketSchema    `yaml:"ticket"`
	Requester RequesterSchema `yaml:"requester"`

	TitleMaxLength       int               `yaml:"title_max_length"`
	StripQuoted          bool              `yaml:"strip_quoted"`
	TitleSingleLine      bool              `yaml:"title_single_line"`
	TypeFieldID          int64             `yaml:"type_field_id"`
	TypeMap              map[string]string `yaml:"type_map"`
	DefaultPhotoFilename string            `yaml:"default_photo_filename"`
}

// TicketSchema lists the field ids of the ticket app.
type TicketSchema struct {
	AppID       int64 `yaml:"app_id"`
	Title       int64 `yaml:"title"`
	Description int64 `yaml:"description"`
	Location    int64 `yaml:"location"`
	Assignee    int64 `yaml:"assignee"`
	Requester   int64 `yaml:"requester"`
	Type        int64 `yaml:"type"`
	Status      int64 `yaml:"status"`
	Source      int64 `yaml:"source"`
	Link        int64 `yaml:"link"`
}

// RequesterSchema lists the field ids of the requester app.
type RequesterSchema struct {
	AppID int64 `yaml:"app_id"`
	Name  int64 `yaml:"name"`
	Mail  int64 `yaml:"mail"`
	Phone int64 `yaml:"phone"`
	Photo int64 `yaml:"photo"`
}

// DefaultTypeMap returns a fresh copy of the helpdesk ticket type translations.
func DefaultTypeMap() map[string]string {
	return map[string]string{
		"question":        "Question",
		"bug":             "Bug",
		"freq":            "Feature request",
		"feature_request": "Feature request",
	}
}

// BuiltinProfile returns one of the shipped schemas.
func BuiltinProfile(name string) (Profile, error) {
	switch name {
	case ProfilePrimary, "":
		return Profile{
			Name:    ProfilePrimary,
			SpaceID: 208,
			Ticket: TicketSchema{
				AppID: 13731, Title: 74721, Description: 74722, Location: 74759, Assignee: 74723,
				Requester: 74743, Type: 74727, Status: 74760, Source: 74728, Link: 74758,
			},
			Requester:            RequesterSchema{AppID: 13734, Name: 74739, Mail: 74740, Phone: 74741, Photo: 74742},
			TitleMaxLength:       128,
			TypeFieldID:          87154,
			TypeMap:              DefaultTypeMap(),
			DefaultPhotoFilename: "user_sm.png",
		}, nil
	case ProfileHoist:
		return Profile{
			Name:    ProfileHoist,
			SpaceID: 207,
			Ticket: TicketSchema{
				AppID: 30910, Title: 183671, Description: 183672, Location: 183675, Assignee: 183674,
				Requester: 183684, Type: 183677, Status: 183673, Source: 183678, Link: 183679,
			},
			Requester:            RequesterSchema{AppID: 30911, Name: 183680, Mail: 183681, Phone: 183682, Photo: 183683},
			TitleMaxLength:       96,
			StripQuoted:          true,
			TitleSingleLine:      true,
			TypeFieldID:          87154,
			TypeMap:              DefaultTypeMap(),
			DefaultPhotoFilename: "user_sm.png",
		}, nil
	}
	return Profile{}, fmt.Errorf("unknown sync profile %q", name)
}

// LoadProfileFile reads a profile from YAML. Omitted title and type settings fall
// back to the primary profile's values.
func LoadProfileFile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile %s: %w", path, err)
	}
	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if profile.TitleMaxLength <= 0 {
		profile.TitleMaxLength = 128
	}
	if profile.TypeFieldID == 0 {
		profile.TypeFieldID = 87154
	}
	if len(profile.TypeMap) == 0 {
		profile.TypeMap = DefaultTypeMap()
	}
	if profile.DefaultPhotoFilename == "" {
		profile.DefaultPhotoFilename = "user_sm.png"
	}
	if err := profile.Validate(); err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", path, err)
	}
	return profile, nil
}

// ResolveProfile prefers an explicit YAML file over a built-in name.
func ResolveProfile(name, file string) (Profile, error) {
	if file != "" {
		return LoadProfileFile(file)
	}
	return BuiltinProfile(name)
}

// Validate checks that the ids a run cannot work without are present.
func (p Profile) Validate() error {
	if p.Ticket.AppID == 0 {
		return fmt.Errorf("ticket.app_id is required")
	}
	if p.Requester.AppID == 0 {
		return fmt.Errorf("requester.app_id is required")
	}
	if p.SpaceID == 0 {
		return fmt.Errorf("space_id is required")
	}
	if p.TitleMaxLength < 4 {
		return fmt.Errorf("title_max_length must be at least 4, got %d", p.TitleMaxLength)
	}
	return nil
}
