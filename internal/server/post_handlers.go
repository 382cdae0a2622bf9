package server

import (
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

type postForm struct {
	Title   string `json:"title" form:"title"`
	Content string `json:"content" form:"content"`
}

func (f postForm) values() map[string]string {
	return map[string]string{"title": f.Title, "content": f.Content}
}

// Index handles GET /
// @Summary List posts
// @Description All posts, newest first, with like counts and the viewer's like state
// @Tags posts
// @Produce json,html
// @Success 200 {object} object{name=string,posts=[]models.Post}
// @Router / [get]
func (s *Server) Index(c *fiber.Ctx) error {
	posts, err := s.postService.ListPosts(c.UserContext(), viewerID(c))
	if err != nil {
		return s.fail(c, err)
	}

	p := s.page(c, "")
	if middleware.PrefersJSON(c) {
		return c.JSON(fiber.Map{"name": p.Name, "posts": posts})
	}
	p.Posts = posts
	return s.render(c, fiber.StatusOK, "index", p)
}

// About handles GET /about
// @Summary About page
// @Tags pages
// @Produce html
// @Success 200 "HTML page"
// @Router /about [get]
func (s *Server) About(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, "about", s.page(c, "About"))
}

// ShowPost handles GET /post/:id
// @Summary Get a post
// @Tags posts
// @Produce json,html
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /post/{id} [get]
func (s *Server) ShowPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return s.fail(c, err)
	}
	post, err := s.postService.GetPost(c.UserContext(), id, viewerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	if middleware.PrefersJSON(c) {
		return c.JSON(post)
	}
	p := s.page(c, post.Title)
	p.Post = post
	return s.render(c, fiber.StatusOK, "post", p)
}

// AddPostForm handles GET /addpost
// @Summary New post form
// @Tags posts
// @Produce html
// @Security SessionCookie
// @Success 200 "HTML page"
// @Success 302 "Redirect to /login"
// @Router /addpost [get]
func (s *Server) AddPostForm(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, "add", s.page(c, "New post"))
}

// AddPost handles POST /addpost
// @Summary Create a post
// @Description The author is the logged in user. The optional image must be png, jpg, jpeg or gif.
// @Tags posts
// @Security SessionCookie
// @Accept multipart/form-data
// @Produce json,html
// @Param title formData string true "Title (max 50 characters)"
// @Param content formData string true "Content"
// @Param image formData file false "Image"
// @Success 201 {object} models.Post
// @Success 302 "Redirect to /"
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /addpost [post]
func (s *Server) AddPost(c *fiber.Ctx) error {
	su, _ := middleware.CurrentUser(c)

	var req postForm
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, models.NewValidationError("Invalid request body"))
	}
	img, err := imageFromForm(c, s.uploadLimit())
	if err != nil {
		return s.fail(c, err)
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		Author:  su.Username,
		Title:   req.Title,
		Content: req.Content,
		Image:   img,
	})
	if err != nil {
		return s.formError(c, "add", "New post", err, req.values(), nil)
	}

	if middleware.PrefersJSON(c) {
		return c.Status(fiber.StatusCreated).JSON(post)
	}
	return s.redirectWithFlash(c, homePath, flashSuccess, "Post added successfully!")
}

// UpdatePostForm handles GET /update/:id
// @Summary Edit post form
// @Tags posts
// @Produce html
// @Security SessionCookie
// @Param id path int true "Post ID"
// @Success 200 "HTML page"
// @Failure 404 {object} models.ErrorResponse
// @Router /update/{id} [get]
func (s *Server) UpdatePostForm(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return s.fail(c, err)
	}
	post, err := s.postService.GetPost(c.UserContext(), id, viewerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	p := s.page(c, "Edit post")
	p.Post = post
	return s.render(c, fiber.StatusOK, "update", p)
}

// UpdatePost handles POST /update/:id
// @Summary Update a post
// @Description Replaces title and content. A new image replaces the current one; without one the image is kept.
// @Tags posts
// @Security SessionCookie
// @Accept multipart/form-data
// @Produce json,html
// @Param id path int true "Post ID"
// @Param title formData string true "Title"
// @Param content formData string true "Content"
// @Param image formData file false "Replacement image"
// @Success 200 {object} models.Post
// @Success 302 "Redirect to /"
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /update/{id} [post]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return s.fail(c, err)
	}
	su, _ := middleware.CurrentUser(c)

	var req postForm
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, models.NewValidationError("Invalid request body"))
	}
	img, err := imageFromForm(c, s.uploadLimit())
	if err != nil {
		return s.fail(c, err)
	}

	post, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		PostID:  id,
		Editor:  su.Username,
		Title:   req.Title,
		Content: req.Content,
		Image:   img,
	})
	if err != nil {
		return s.formError(c, "update", "Edit post", err, req.values(),
			&models.Post{ID: id, Title: req.Title, Content: req.Content})
	}

	if middleware.PrefersJSON(c) {
		return c.JSON(post)
	}
	return s.redirectWithFlash(c, homePath, flashInfo, "Post updated!")
}

// DeletePost handles GET and POST /delete/:id
// @Summary Delete a post
// @Description Deletes the post and its likes
// @Tags posts
// @Security SessionCookie
// @Produce json,html
// @Param id path int true "Post ID"
// @Success 200 {object} object{message=string,category=string}
// @Success 302 "Redirect to /"
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /delete/{id} [get]
// @Router /delete/{id} [post]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return s.fail(c, err)
	}
	su, _ := middleware.CurrentUser(c)

	if err := s.postService.DeletePost(c.UserContext(), service.DeletePostInput{PostID: id, Editor: su.Username}); err != nil {
		return s.fail(c, err)
	}
	return s.redirectWithFlash(c, homePath, flashDanger, "Post deleted!")
}

// ToggleLike handles POST /like/:id
// @Summary Like or unlike a post
// @Description Toggles the logged in user's like
// @Tags posts
// @Security SessionCookie
// @Produce json,html
// @Param id path int true "Post ID"
// @Success 200 {object} models.LikeResult
// @Success 302 "Redirect to /"
// @Failure 404 {object} models.ErrorResponse
// @Router /like/{id} [post]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return s.fail(c, err)
	}
	su, _ := middleware.CurrentUser(c)

	res, err := s.likeService.Toggle(c.UserContext(), service.ToggleLikeInput{
		UserID: su.ID, Username: su.Username, PostID: id,
	})
	if err != nil {
		return s.fail(c, err)
	}

	if middleware.PrefersJSON(c) {
		return c.JSON(res)
	}
	if res.Liked {
		return s.redirectWithFlash(c, homePath, flashSuccess, "You liked the post!")
	}
	return s.redirectWithFlash(c, homePath, flashInfo, "You unliked the post.")
}
