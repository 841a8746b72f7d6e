// Package appmeta reads application manifests from the update server: the
// published files, the latest version and the announcements shown to users.
package appmeta

import (
	"encoding/json"
	"strings"
	"time"
)

// DateLayout is the wire format of announcement dates ("dd.MM.yyyy HH.mm").
const DateLayout = "02.01.2006 15.04"

// File is one published build of an application.
type File struct {
	Version float64 `json:"version"`
	URL     string  `json:"url"`
	Name    string  `json:"name"`
}

// TranslationBundle maps language codes to text.
type TranslationBundle map[string]string

// Get returns the text for lang. Region suffixes ("en-US", "en_GB") are
// ignored and the lookup is case-insensitive.
func (b TranslationBundle) Get(lang string) string {
	return b[language(lang)]
}

// Has reports whether the bundle carries text for lang.
func (b TranslationBundle) Has(lang string) bool {
	_, ok := b[language(lang)]
	return ok
}

// Put stores text for lang.
func (b TranslationBundle) Put(lang, text string) {
	b[language(lang)] = text
}

func language(lang string) string {
	if i := strings.IndexAny(lang, "-_"); i >= 0 {
		lang = lang[:i]
	}
	return strings.ToLower(lang)
}

// Announcement is a message published for some versions of an application.
type Announcement struct {
	ID       int               `json:"id"`
	Title    TranslationBundle `json:"title"`
	Content  TranslationBundle `json:"content"`
	Date     time.Time         `json:"-"`
	Versions []string          `json:"versions"`
	Duration int               `json:"duration"`
}

type announcementJSON struct {
	ID       int               `json:"id"`
	Title    TranslationBundle `json:"title"`
	Content  TranslationBundle `json:"content"`
	Date     string            `json:"date,omitempty"`
	Versions []string          `json:"versions"`
	Duration int               `json:"duration"`
}

// UnmarshalJSON decodes the wire form. An unparsable date leaves Date zero.
func (a *Announcement) UnmarshalJSON(data []byte) error {
	var raw announcementJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = Announcement{
		ID:       raw.ID,
		Title:    raw.Title,
		Content:  raw.Content,
		Versions: raw.Versions,
		Duration: raw.Duration,
	}
	if raw.Date != "" {
		if d, err := time.ParseInLocation(DateLayout, raw.Date, time.Local); err == nil {
			a.Date = d
		}
	}
	return nil
}

func (a Announcement) MarshalJSON() ([]byte, error) {
	raw := announcementJSON{
		ID:       a.ID,
		Title:    a.Title,
		Content:  a.Content,
		Versions: a.Versions,
		Duration: a.Duration,
	}
	if !a.Date.IsZero() {
		raw.Date = a.Date.Format(DateLayout)
	}
	return json.Marshal(raw)
}

// Covers reports whether the announcement targets version.
func (a Announcement) Covers(version string) bool {
	for _, v := range a.Versions {
		if v == version {
			return true
		}
	}
	return false
}

// App is an application manifest.
type App struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Icon          string         `json:"icon"`
	Latest        float64        `json:"latest"`
	Files         []File         `json:"files"`
	Announcements []Announcement `json:"announcements"`

	// Offline is set on manifests that did not come from the server in the
	// current call: placeholders and stored copies.
	Offline bool `json:"-"`
}

// Offline returns a placeholder manifest for an application the server
// does not know about or could not be asked.
func Offline(id, name string) *App {
	return &App{ID: id, Name: name, Offline: true}
}

// LatestFile returns the file whose version equals Latest, or nil.
func (a *App) LatestFile() *File {
	for i := range a.Files {
		if a.Files[i].Version == a.Latest {
			return &a.Files[i]
		}
	}
	return nil
}

// AnnouncementsFor returns the announcements covering version.
func (a *App) AnnouncementsFor(version string) []Announcement {
	var out []Announcement
	for _, an := range a.Announcements {
		if an.Covers(version) {
			out = append(out, an)
		}
	}
	return out
}

// decodeApp parses a manifest. Null announcements are dropped.
func decodeApp(id string, data []byte) (*App, error) {
	var raw struct {
		App
		Announcements []*Announcement `json:"announcements"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	app := raw.App
	app.ID = id
	app.Announcements = make([]Announcement, 0, len(raw.Announcements))
	for _, an := range raw.Announcements {
		if an != nil {
			app.Announcements = append(app.Announcements, *an)
		}
	}
	return &app, nil
}
