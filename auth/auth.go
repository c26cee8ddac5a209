package auth

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"inkwell/common"
	"inkwell/models"
)

// session key holding the logged-in user id
const sessionUserKey = "user_id"

// gin context key holding the resolved *models.User for the request
const contextUserKey = "current_user"

type AuthModule struct {
	db *gorm.DB
}

func NewAuthModule(db *gorm.DB) *AuthModule {
	return &AuthModule{db: db}
}

func (a *AuthModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/register", a.registerPage)
	router.POST("/register", a.registerPost)
	router.GET("/login", a.loginPage)
	router.POST("/login", a.loginPost)
	router.GET("/logout", a.logout)
}

// Register creates a new account. The email pre-check is advisory; the
// unique index on users.email is what actually decides duplicates, so a
// concurrent registration loses with ErrDuplicateEmail either way. The
// first account ever created becomes the administrator.
func (a *AuthModule) Register(email, password, name string) (*models.User, error) {
	if email == "" || password == "" || name == "" {
		return nil, common.ErrValidation
	}

	var existing models.User
	if err := a.db.Where("email = ?", email).First(&existing).Error; err == nil {
		return nil, common.ErrDuplicateEmail
	}

	passwordHash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		Role:         models.RoleUser,
	}

	err = a.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			user.Role = models.RoleAdmin
		}
		return tx.Create(user).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, common.ErrDuplicateEmail
		}
		return nil, err
	}

	return user, nil
}

// Login verifies credentials. The two failure modes stay distinct in the
// taxonomy so callers can tell them apart, but the HTTP layer deliberately
// shows one message for both.
func (a *AuthModule) Login(email, password string) (*models.User, error) {
	var user models.User
	if err := a.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNoSuchAccount
		}
		return nil, err
	}

	if !checkPasswordHash(password, user.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}

	return &user, nil
}

// LoadCurrentUser resolves the session to a full user row on every request
// and places it in the gin context. A session pointing at a vanished row
// fails the request rather than limping on as anonymous.
func (a *AuthModule) LoadCurrentUser(c *gin.Context) {
	session := sessions.Default(c)
	userID := session.Get(sessionUserKey)
	if userID == nil {
		c.Next()
		return
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		session.Clear()
		session.Save()
		c.HTML(http.StatusNotFound, "error.html", gin.H{
			"error": "Account not found",
		})
		c.Abort()
		return
	}

	c.Set(contextUserKey, &user)
	c.Next()
}

func (a *AuthModule) RequireAuth(c *gin.Context) {
	if CurrentUser(c) == nil {
		c.Redirect(http.StatusFound, "/login")
		c.Abort()
		return
	}
	c.Next()
}

// RequireAdmin gates post management. The error page is the same whether
// the target resource exists or not.
func (a *AuthModule) RequireAdmin(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		c.Redirect(http.StatusFound, "/login")
		c.Abort()
		return
	}

	if !CanManagePosts(user) {
		c.HTML(http.StatusForbidden, "error.html", gin.H{
			"error": "You are not allowed to do that",
		})
		c.Abort()
		return
	}
	c.Next()
}

// CurrentUser returns the user resolved by LoadCurrentUser, or nil for an
// anonymous request.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(contextUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// CanManagePosts is the single authorization rule for post mutations.
func CanManagePosts(user *models.User) bool {
	return user.IsAdmin()
}

func establishSession(c *gin.Context, user *models.User) error {
	session := sessions.Default(c)
	session.Set(sessionUserKey, user.ID)
	return session.Save()
}

func (a *AuthModule) registerPage(c *gin.Context) {
	if CurrentUser(c) != nil {
		c.Redirect(http.StatusFound, "/")
		return
	}
	c.HTML(http.StatusOK, "register.html", gin.H{})
}

func (a *AuthModule) registerPost(c *gin.Context) {
	email := c.PostForm("email")
	password := c.PostForm("password")
	name := c.PostForm("name")

	formData := gin.H{
		"email": email,
		"name":  name,
	}

	user, err := a.Register(email, password, name)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrDuplicateEmail):
			formData["error"] = "You've already registered with this email, log in instead"
			c.HTML(http.StatusBadRequest, "register.html", formData)
		case errors.Is(err, common.ErrValidation):
			formData["error"] = "Please fill in all fields"
			c.HTML(http.StatusBadRequest, "register.html", formData)
		default:
			formData["error"] = "Could not create your account"
			c.HTML(http.StatusInternalServerError, "register.html", formData)
		}
		return
	}

	if err := establishSession(c, user); err != nil {
		formData["error"] = "Could not create your session"
		c.HTML(http.StatusInternalServerError, "register.html", formData)
		return
	}

	c.Redirect(http.StatusFound, "/")
}

func (a *AuthModule) loginPage(c *gin.Context) {
	if CurrentUser(c) != nil {
		c.Redirect(http.StatusFound, "/")
		return
	}
	c.HTML(http.StatusOK, "login.html", gin.H{})
}

func (a *AuthModule) loginPost(c *gin.Context) {
	email := c.PostForm("email")
	password := c.PostForm("password")

	user, err := a.Login(email, password)
	if err != nil {
		// one message for unknown email and wrong password alike
		c.HTML(http.StatusUnauthorized, "login.html", gin.H{
			"error": "Invalid email or password",
			"email": email,
		})
		return
	}

	if err := establishSession(c, user); err != nil {
		c.HTML(http.StatusInternalServerError, "login.html", gin.H{
			"error": "Could not create your session",
			"email": email,
		})
		return
	}

	c.Redirect(http.StatusFound, "/")
}

func (a *AuthModule) logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()

	c.Redirect(http.StatusFound, "/")
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(bytes), err
}

func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
