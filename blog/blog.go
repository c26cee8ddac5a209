package blog

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
	"gorm.io/gorm"

	"inkwell/auth"
	"inkwell/common"
	"inkwell/models"
)

type BlogModule struct {
	db *gorm.DB
}

// markdown renderer configured with Goldmark and useful extensions
var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,     // tables, strikethrough, task lists, autolinks (GFM set)
		extension.Linkify, // linkify raw URLs
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithUnsafe(), // allow raw HTML passthrough in Markdown
	),
)

// PostFields carries the mutable post attributes from the create/edit forms.
// Date is not among them: it is stamped once at creation.
type PostFields struct {
	Title    string
	Subtitle string
	ImgURL   string
	Body     string
}

func NewBlogModule(db *gorm.DB) *BlogModule {
	return &BlogModule{db: db}
}

func (b *BlogModule) RegisterRoutes(router *gin.Engine, authModule *auth.AuthModule) {
	router.GET("/", b.index)
	router.GET("/about", b.about)
	router.GET("/contact", b.contact)

	authedGroup := router.Group("/")
	authedGroup.Use(authModule.RequireAuth)
	{
		authedGroup.GET("/post/:id", b.showPost)
		authedGroup.POST("/post/:id", b.addComment)
	}

	adminGroup := router.Group("/")
	adminGroup.Use(authModule.RequireAdmin)
	{
		adminGroup.GET("/new-post", b.newPost)
		adminGroup.POST("/new-post", b.createPost)
		adminGroup.GET("/edit-post/:id", b.editPost)
		adminGroup.POST("/edit-post/:id", b.updatePost)
		adminGroup.GET("/delete/:id", b.deletePost)
	}
}

// ListPosts returns all posts in creation order, with authors loaded.
func (b *BlogModule) ListPosts() ([]models.Post, error) {
	var posts []models.Post
	err := b.db.Preload("Author").Order("id").Find(&posts).Error
	return posts, err
}

// GetPost loads one post with its author and comment thread.
func (b *BlogModule) GetPost(id int) (*models.Post, error) {
	var post models.Post
	err := b.db.Preload("Author").
		Preload("Comments").
		Preload("Comments.Author").
		First(&post, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return &post, nil
}

// CreatePost stamps the publication date and persists a new post. Title
// uniqueness is decided by the unique index, not the form.
func (b *BlogModule) CreatePost(fields PostFields, author *models.User) (*models.Post, error) {
	if !auth.CanManagePosts(author) {
		return nil, common.ErrForbidden
	}
	if strings.TrimSpace(fields.Title) == "" || strings.TrimSpace(fields.Body) == "" {
		return nil, common.ErrValidation
	}

	post := &models.Post{
		Title:    fields.Title,
		Subtitle: fields.Subtitle,
		Date:     time.Now().Format("January 02, 2006"),
		Body:     fields.Body,
		ImgURL:   fields.ImgURL,
		AuthorID: author.ID,
	}

	if err := b.db.Create(post).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, common.ErrDuplicateTitle
		}
		return nil, err
	}

	return post, nil
}

// EditPost overwrites the mutable fields and reassigns authorship to the
// acting user. The publication date is left untouched.
func (b *BlogModule) EditPost(id int, fields PostFields, actingUser *models.User) (*models.Post, error) {
	if !auth.CanManagePosts(actingUser) {
		return nil, common.ErrForbidden
	}
	if strings.TrimSpace(fields.Title) == "" || strings.TrimSpace(fields.Body) == "" {
		return nil, common.ErrValidation
	}

	var post models.Post
	err := b.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&post, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return common.ErrNotFound
			}
			return err
		}

		post.Title = fields.Title
		post.Subtitle = fields.Subtitle
		post.ImgURL = fields.ImgURL
		post.Body = fields.Body
		post.AuthorID = actingUser.ID

		if err := tx.Save(&post).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return common.ErrDuplicateTitle
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &post, nil
}

// DeletePost removes the post and every comment referencing it in one
// transaction, so no comment can outlive its parent.
func (b *BlogModule) DeletePost(id int, actingUser *models.User) error {
	if !auth.CanManagePosts(actingUser) {
		return common.ErrForbidden
	}

	return b.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.Post{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return common.ErrNotFound
		}
		return tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error
	})
}

// AddComment attaches a comment to an existing post. Any authenticated
// user may comment; the post lookup and insert share a transaction.
func (b *BlogModule) AddComment(postID int, text string, author *models.User) (*models.Comment, error) {
	if author == nil {
		return nil, common.ErrForbidden
	}
	if strings.TrimSpace(text) == "" {
		return nil, common.ErrValidation
	}

	comment := &models.Comment{
		Text:     text,
		AuthorID: author.ID,
		PostID:   postID,
	}

	err := b.db.Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.First(&post, postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return common.ErrNotFound
			}
			return err
		}
		return tx.Create(comment).Error
	})
	if err != nil {
		return nil, err
	}

	return comment, nil
}

func (b *BlogModule) index(c *gin.Context) {
	posts, err := b.ListPosts()
	if err != nil {
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"error": "Could not load posts",
		})
		return
	}

	c.HTML(http.StatusOK, "index.html", gin.H{
		"posts": posts,
		"user":  auth.CurrentUser(c),
	})
}

func (b *BlogModule) showPost(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.HTML(http.StatusNotFound, "error.html", gin.H{"error": "Post not found"})
		return
	}

	post, err := b.GetPost(id)
	if err != nil {
		c.HTML(http.StatusNotFound, "error.html", gin.H{"error": "Post not found"})
		return
	}

	c.HTML(http.StatusOK, "post.html", gin.H{
		"post":     post,
		"bodyHTML": template.HTML(renderMarkdown(post.Body)),
		"user":     auth.CurrentUser(c),
	})
}

func (b *BlogModule) addComment(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.HTML(http.StatusNotFound, "error.html", gin.H{"error": "Post not found"})
		return
	}

	text := c.PostForm("comment")
	if _, err := b.AddComment(id, text, auth.CurrentUser(c)); err != nil {
		switch {
		case errors.Is(err, common.ErrNotFound):
			c.HTML(http.StatusNotFound, "error.html", gin.H{"error": "Post not found"})
		case errors.Is(err, common.ErrValidation):
			c.Redirect(http.StatusFound, "/post/"+c.Param("id"))
		default:
			c.HTML(http.StatusInternalServerError, "error.html", gin.H{
				"error": "Could not save your comment",
			})
		}
		return
	}

	c.Redirect(http.StatusFound, "/post/"+c.Param("id"))
}

func (b *BlogModule) newPost(c *gin.Context) {
	c.HTML(http.StatusOK, "make_post.html", gin.H{
		"user": auth.CurrentUser(c),
	})
}

func (b *BlogModule) createPost(c *gin.Context) {
	fields := postFieldsFromForm(c)

	post, err := b.CreatePost(fields, auth.CurrentUser(c))
	if err != nil {
		formData := gin.H{
			"fields": fields,
			"user":   auth.CurrentUser(c),
		}
		switch {
		case errors.Is(err, common.ErrDuplicateTitle):
			formData["error"] = "A post with this title already exists"
			c.HTML(http.StatusBadRequest, "make_post.html", formData)
		case errors.Is(err, common.ErrValidation):
			formData["error"] = "Title and body are required"
			c.HTML(http.StatusBadRequest, "make_post.html", formData)
		default:
			formData["error"] = "Could not create post"
			c.HTML(http.StatusInternalServerError, "make_post.html", formData)
		}
		return
	}

	c.Redirect(http.StatusFound, "/post/"+strconv.Itoa(post.ID))
}

func (b *BlogModule) editPost(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.HTML(http.StatusNotFound, "error.html", gin.H{"error": "Post not found"})
		return
	}

	post, err := b.GetPost(id)
	if err != nil {
		c.HTML(http.StatusNotFound, "error.html", gin.H{"error": "Post not found"})
		return
	}

	c.HTML(http.StatusOK, "make_post.html", gin.H{
		"post":   post,
		"isEdit": true,
		"user":   auth.CurrentUser(c),
	})
}

func (b *BlogModule) updatePost(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.HTML(http.StatusNotFound, "error.html", gin.H{"error": "Post not found"})
		return
	}

	fields := postFieldsFromForm(c)

	post, err := b.EditPost(id, fields, auth.CurrentUser(c))
	if err != nil {
		formData := gin.H{
			"fields": fields,
			"isEdit": true,
			"user":   auth.CurrentUser(c),
		}
		switch {
		case errors.Is(err, common.ErrNotFound):
			c.HTML(http.StatusNotFound, "error.html", gin.H{"error": "Post not found"})
		case errors.Is(err, common.ErrDuplicateTitle):
			formData["error"] = "A post with this title already exists"
			c.HTML(http.StatusBadRequest, "make_post.html", formData)
		case errors.Is(err, common.ErrValidation):
			formData["error"] = "Title and body are required"
			c.HTML(http.StatusBadRequest, "make_post.html", formData)
		default:
			formData["error"] = "Could not update post"
			c.HTML(http.StatusInternalServerError, "make_post.html", formData)
		}
		return
	}

	c.Redirect(http.StatusFound, "/post/"+strconv.Itoa(post.ID))
}

func (b *BlogModule) deletePost(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.HTML(http.StatusNotFound, "error.html", gin.H{"error": "Post not found"})
		return
	}

	if err := b.DeletePost(id, auth.CurrentUser(c)); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			c.HTML(http.StatusNotFound, "error.html", gin.H{"error": "Post not found"})
			return
		}
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"error": "Could not delete post",
		})
		return
	}

	c.Redirect(http.StatusFound, "/")
}

func (b *BlogModule) about(c *gin.Context) {
	c.HTML(http.StatusOK, "about.html", gin.H{
		"user": auth.CurrentUser(c),
	})
}

func (b *BlogModule) contact(c *gin.Context) {
	c.HTML(http.StatusOK, "contact.html", gin.H{
		"user": auth.CurrentUser(c),
	})
}

func postFieldsFromForm(c *gin.Context) PostFields {
	return PostFields{
		Title:    c.PostForm("title"),
		Subtitle: c.PostForm("subtitle"),
		ImgURL:   c.PostForm("img_url"),
		Body:     c.PostForm("body"),
	}
}

func renderMarkdown(content string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(content), &buf); err != nil {
		// on conversion failure, fall back to the raw content so the page still renders
		return content
	}
	return buf.String()
}
