package models

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	ID           int    `gorm:"primary_key;autoIncrement" json:"id"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"` // json:"-" prevents password from being exposed in API
	Name         string `gorm:"not null" json:"name"`
	Role         string `gorm:"not null;default:'user'" json:"role"`

	Posts    []Post    `gorm:"foreignKey:AuthorID" json:"-"`
	Comments []Comment `gorm:"foreignKey:AuthorID" json:"-"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

type Post struct {
	ID       int    `gorm:"primary_key;autoIncrement" json:"id"`
	Title    string `gorm:"uniqueIndex;not null" json:"title"`
	Subtitle string `gorm:"not null" json:"subtitle"`
	Date     string `gorm:"not null" json:"date"` // human-readable, stamped at creation, never changed by edits
	Body     string `gorm:"type:text;not null" json:"body"`
	ImgURL   string `json:"img_url"`
	AuthorID int    `gorm:"not null;index" json:"author_id"`
	Author   User   `gorm:"foreignKey:AuthorID" json:"author"`

	Comments []Comment `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"comments"`
}

type Comment struct {
	ID       int    `gorm:"primary_key;autoIncrement" json:"id"`
	Text     string `gorm:"type:text;not null" json:"text"`
	AuthorID int    `gorm:"not null;index" json:"author_id"`
	Author   User   `gorm:"foreignKey:AuthorID" json:"author"`
	PostID   int    `gorm:"not null;index" json:"post_id"`
}
