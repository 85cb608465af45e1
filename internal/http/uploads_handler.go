package http

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/flash"

	"psibuilder/internal/config"
	"psibuilder/internal/profiles"
	"psibuilder/internal/uploads"
)

// UploadProfileImageAction replaces the professional's photo.
func UploadProfileImageAction(ctx *cartridge.Context) error {
	return processImageUpload(ctx, uploads.KindProfileImage)
}

// UploadLogoAction replaces the site logo.
func UploadLogoAction(ctx *cartridge.Context) error {
	return processImageUpload(ctx, uploads.KindLogoImage)
}

func processImageUpload(ctx *cartridge.Context, kind uploads.Kind) error {
	_, profile, _, err := currentProfileAndSite(ctx)
	if err != nil {
		ctx.Logger.Error("Failed to load profile for upload", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao carregar o perfil")
		return ctx.Redirect(siteEditorPath, fiber.StatusFound)
	}

	fileHeader, err := ctx.Ctx.FormFile("image")
	if err != nil {
		flash.SetFlash(ctx.Ctx, "error", "Selecione uma imagem para enviar")
		return ctx.Redirect(siteEditorPath, fiber.StatusFound)
	}

	cfg := config.GetConfig()
	processor := uploads.NewProcessor(cfg, ctx.Logger)

	url, err := processor.Store(fileHeader, kind)
	if err != nil {
		var invalid *uploads.InvalidUploadError
		if errors.As(err, &invalid) {
			flash.SetFlash(ctx.Ctx, "error", invalid.Reason)
			return ctx.Redirect(siteEditorPath, fiber.StatusFound)
		}
		ctx.Logger.Error("Failed to store upload",
			slog.Any("error", err),
			slog.String("kind", string(kind)),
			slog.String("filename", fileHeader.Filename))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao enviar a imagem")
		return ctx.Redirect(siteEditorPath, fiber.StatusFound)
	}

	previous := profile.ProfileImageURL
	if kind == uploads.KindLogoImage {
		previous = profile.LogoImageURL
		profile.LogoImageURL = url
	} else {
		profile.ProfileImageURL = url
	}

	db := ctx.DB()
	if err := profiles.UpdateProfile(db, ctx.Logger, profile); err != nil {
		ctx.Logger.Error("Failed to save image URL", slog.Any("error", err))
		_ = processor.Remove(url)
		flash.SetFlash(ctx.Ctx, "error", "Falha ao salvar a imagem")
		return ctx.Redirect(siteEditorPath, fiber.StatusFound)
	}

	if previous != "" && previous != url {
		if err := processor.Remove(previous); err != nil {
			ctx.Logger.Warn("Failed to remove old image", slog.Any("error", err), slog.String("url", previous))
		}
	}

	flash.SetFlash(ctx.Ctx, "success", "Imagem atualizada")
	return ctx.Redirect(siteEditorPath, fiber.StatusFound)
}
