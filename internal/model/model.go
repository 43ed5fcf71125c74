// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Remote collection names. "Habit" is singular and capitalized in the hosted
// backend; it is kept as is.
const (
	CollectionUsers  = "users"
	CollectionPosts  = "posts"
	CollectionHabits = "Habit"
)

// Goal is the user's declared focus area. The named values are the ones the
// registration form offers; free text is accepted as well.
type Goal string

const (
	GoalHealth        Goal = "Health and Wellness"
	GoalConfidence    Goal = "Self Confidence"
	GoalCommunication Goal = "Interpersonal Communications"
)

// Tokens collects issued access tokens.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// Account is a login identity stored next to the document store.
type Account struct {
	ID        uuid.UUID // becomes the user's uid
	Email     string    // unique
	PwdHash   []byte    // Argon2id(password, Salt)
	Salt      []byte
	CreatedAt time.Time
}

// User is a profile. One remote document per user, one local row keyed by UID.
type User struct {
	UID   string `json:"uid"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Goal  Goal   `json:"goal"`
	Image string `json:"image,omitempty"` // remote only
}

// Post is a community feed entry as stored remotely, including the
// denormalized display fields.
type Post struct {
	ID           string    `json:"-"`
	UID          string    `json:"uid"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Image        string    `json:"image,omitempty"`
	UserName     string    `json:"userName,omitempty"`
	ProfileImage string    `json:"profileImage,omitempty"`
	CreatedAt    time.Time `json:"-"`
}

// LocalPost is the reduced projection kept in the local mirror.
type LocalPost struct {
	ID      string
	UID     string
	Title   string
	Content string
}

// Local returns the mirrored projection of p.
func (p Post) Local() LocalPost {
	return LocalPost{ID: p.ID, UID: p.UID, Title: p.Title, Content: p.Content}
}

// Post widens a mirrored row back to a Post; display fields stay empty.
func (lp LocalPost) Post() Post {
	return Post{ID: lp.ID, UID: lp.UID, Title: lp.Title, Content: lp.Content}
}

// Habit is the per-user habit record: pending tasks and the completed counter.
type Habit struct {
	UID            string   `json:"uid"`
	Tasks          []string `json:"tasks"`
	CompletedTasks int      `json:"completedTasks"`
}

// Empty reports whether h has no tasks and a zero counter.
func (h Habit) Empty() bool { return len(h.Tasks) == 0 && h.CompletedTasks == 0 }

// Document is one record of the remote document store.
type Document struct {
	Collection string
	ID         string
	Fields     map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
