package http

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/flash"
	"github.com/karloscodes/cartridge/inertia"
	"gorm.io/gorm"

	"psibuilder/internal/blog"
	"psibuilder/internal/subscriptions"
)

const blogIndexPath = "/admin/blog"

// BlogIndexAction lists the site's posts with plan usage (Inertia)
func BlogIndexAction(ctx *cartridge.Context) error {
	userID, _, site, err := currentProfileAndSite(ctx)
	if err != nil {
		ctx.Logger.Error("Failed to load site for blog list", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao carregar o blog")
		return ctx.Redirect("/admin/dashboard", fiber.StatusFound)
	}

	db := ctx.DB()

	posts, err := blog.GetPostsForSite(db, site.ID)
	if err != nil {
		ctx.Logger.Error("Failed to list posts", slog.Any("error", err))
		posts = []blog.Post{}
	}

	limits := subscriptions.PlanLimits(subscriptions.PlanForUser(db, userID))

	return inertia.RenderPage(ctx.Ctx, "BlogIndex", inertia.Props{
		"title":      "Blog",
		"posts":      posts,
		"post_limit": limits.BlogPosts,
	})
}

// BlogNewPageAction shows the post creation form (Inertia)
func BlogNewPageAction(ctx *cartridge.Context) error {
	return inertia.RenderPage(ctx.Ctx, "BlogNew", inertia.Props{
		"title": "Novo artigo",
	})
}

// BlogCreateAction creates a post, enforcing the plan's post limit
func BlogCreateAction(ctx *cartridge.Context) error {
	userID, _, site, err := currentProfileAndSite(ctx)
	if err != nil {
		ctx.Logger.Error("Failed to load site for post creation", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao carregar o blog")
		return ctx.Redirect(blogIndexPath, fiber.StatusFound)
	}

	title := strings.TrimSpace(ctx.FormValue("title"))
	content := ctx.FormValue("content")
	if title == "" || content == "" {
		flash.SetFlash(ctx.Ctx, "error", "Título e conteúdo são obrigatórios")
		return ctx.Redirect(blogIndexPath+"/new", fiber.StatusFound)
	}

	post := blog.Post{
		SiteID:           site.ID,
		Title:            title,
		Content:          content,
		Excerpt:          strings.TrimSpace(ctx.FormValue("excerpt")),
		FeaturedImageURL: strings.TrimSpace(ctx.FormValue("featured_image_url")),
		IsPublished:      ctx.FormValue("is_published") == "true",
	}

	db := ctx.DB()
	if err := blog.CreatePost(db, ctx.Logger, userID, &post); err != nil {
		if err == blog.ErrPostLimitReached {
			flash.SetFlash(ctx.Ctx, "error", "Você atingiu o limite de artigos do seu plano")
			return ctx.Redirect(blogIndexPath, fiber.StatusFound)
		}
		ctx.Logger.Error("Failed to create post", slog.Any("error", err), slog.String("title", title))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao criar o artigo")
		return ctx.Redirect(blogIndexPath+"/new", fiber.StatusFound)
	}

	ctx.Logger.Info("Post created",
		slog.Uint64("postId", uint64(post.ID)),
		slog.String("slug", post.Slug))

	flash.SetFlash(ctx.Ctx, "success", "Artigo criado")
	return ctx.Redirect(blogIndexPath, fiber.StatusFound)
}

// BlogEditPageAction shows the post edit form (Inertia)
func BlogEditPageAction(ctx *cartridge.Context) error {
	_, _, site, err := currentProfileAndSite(ctx)
	if err != nil {
		ctx.Logger.Error("Failed to load site for post edit", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao carregar o blog")
		return ctx.Redirect(blogIndexPath, fiber.StatusFound)
	}

	post, ok := loadOwnPost(ctx, site.ID)
	if !ok {
		return ctx.Redirect(blogIndexPath, fiber.StatusFound)
	}

	return inertia.RenderPage(ctx.Ctx, "BlogEdit", inertia.Props{
		"title": "Editar artigo",
		"post":  post,
	})
}

// BlogUpdateAction saves changes to a post
func BlogUpdateAction(ctx *cartridge.Context) error {
	_, _, site, err := currentProfileAndSite(ctx)
	if err != nil {
		ctx.Logger.Error("Failed to load site for post update", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao carregar o blog")
		return ctx.Redirect(blogIndexPath, fiber.StatusFound)
	}

	post, ok := loadOwnPost(ctx, site.ID)
	if !ok {
		return ctx.Redirect(blogIndexPath, fiber.StatusFound)
	}

	title := strings.TrimSpace(ctx.FormValue("title"))
	content := ctx.FormValue("content")
	if title == "" || content == "" {
		flash.SetFlash(ctx.Ctx, "error", "Título e conteúdo são obrigatórios")
		return ctx.Redirect(blogIndexPath+"/"+strconv.Itoa(int(post.ID))+"/edit", fiber.StatusFound)
	}

	post.Title = title
	post.Content = content
	post.Excerpt = strings.TrimSpace(ctx.FormValue("excerpt"))
	post.FeaturedImageURL = strings.TrimSpace(ctx.FormValue("featured_image_url"))
	post.IsPublished = ctx.FormValue("is_published") == "true"

	db := ctx.DB()
	if err := blog.UpdatePost(db, ctx.Logger, post); err != nil {
		ctx.Logger.Error("Failed to update post", slog.Any("error", err), slog.Uint64("postId", uint64(post.ID)))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao salvar o artigo")
		return ctx.Redirect(blogIndexPath+"/"+strconv.Itoa(int(post.ID))+"/edit", fiber.StatusFound)
	}

	flash.SetFlash(ctx.Ctx, "success", "Artigo atualizado")
	return ctx.Redirect(blogIndexPath, fiber.StatusFound)
}

// BlogDeleteAction removes a post
func BlogDeleteAction(ctx *cartridge.Context) error {
	_, _, site, err := currentProfileAndSite(ctx)
	if err != nil {
		ctx.Logger.Error("Failed to load site for post deletion", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao carregar o blog")
		return ctx.Redirect(blogIndexPath, fiber.StatusFound)
	}

	id, err := ctx.ParamsInt("id")
	if err != nil {
		flash.SetFlash(ctx.Ctx, "error", "Artigo inválido")
		return ctx.Redirect(blogIndexPath, fiber.StatusFound)
	}

	db := ctx.DB()
	if err := blog.DeletePost(db, ctx.Logger, site.ID, uint(id)); err != nil {
		if err == gorm.ErrRecordNotFound {
			flash.SetFlash(ctx.Ctx, "error", "Artigo não encontrado")
			return ctx.Redirect(blogIndexPath, fiber.StatusFound)
		}
		ctx.Logger.Error("Failed to delete post", slog.Any("error", err), slog.Int("id", id))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao excluir o artigo")
		return ctx.Redirect(blogIndexPath, fiber.StatusFound)
	}

	flash.SetFlash(ctx.Ctx, "success", "Artigo excluído")
	return ctx.Redirect(blogIndexPath, fiber.StatusFound)
}

// loadOwnPost fetches the :id post and checks it belongs to the user's site.
func loadOwnPost(ctx *cartridge.Context, siteID uint) (*blog.Post, bool) {
	id, err := ctx.ParamsInt("id")
	if err != nil {
		flash.SetFlash(ctx.Ctx, "error", "Artigo inválido")
		return nil, false
	}

	db := ctx.DB()

	post, err := blog.GetPostByID(db, uint(id))
	if err != nil || post.SiteID != siteID {
		if err != nil && err != gorm.ErrRecordNotFound {
			ctx.Logger.Error("Failed to load post", slog.Any("error", err), slog.Int("id", id))
		}
		flash.SetFlash(ctx.Ctx, "error", "Artigo não encontrado")
		return nil, false
	}

	return post, true
}
