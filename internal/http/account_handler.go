package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/crypto"
	"github.com/karloscodes/cartridge/flash"
	"github.com/karloscodes/cartridge/inertia"
	"log/slog"

	"psibuilder/internal/subscriptions"
	"psibuilder/internal/users"
)

const accountPath = "/admin/account"

// AccountPageAction renders the account settings page (Inertia)
func AccountPageAction(ctx *cartridge.Context) error {
	userID, authenticated := ctx.Session.GetUserID(ctx.Ctx)
	if !authenticated {
		return ctx.Redirect("/login", fiber.StatusFound)
	}

	db := ctx.DB()

	user, err := users.FindByID(db, userID)
	if err != nil {
		ctx.Logger.Error("Failed to load user for account page", slog.Uint64("userID", uint64(userID)), slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao carregar a conta")
		return ctx.Redirect("/admin/dashboard", fiber.StatusFound)
	}

	plan := subscriptions.PlanForUser(db, userID)

	props := inertia.Props{
		"title": "Minha conta",
		"email": user.Email,
		"plan":  plan,
	}

	if sub, err := subscriptions.GetByUserID(db, userID); err == nil {
		props["subscription_status"] = sub.Status
	}

	return inertia.RenderPage(ctx.Ctx, "Account", props)
}

// AccountChangePasswordFormAction handles POST form submission for password change (Inertia)
func AccountChangePasswordFormAction(ctx *cartridge.Context) error {
	currentPassword := ctx.FormValue("current_password")
	newPassword := ctx.FormValue("new_password")

	userID, authenticated := ctx.Session.GetUserID(ctx.Ctx)
	if !authenticated {
		flash.SetFlash(ctx.Ctx, "error", "Faça login para continuar")
		return ctx.Redirect("/login", fiber.StatusFound)
	}

	if strings.TrimSpace(currentPassword) == "" {
		flash.SetFlash(ctx.Ctx, "error", "Informe a senha atual")
		return ctx.Redirect(accountPath, fiber.StatusFound)
	}

	if strings.TrimSpace(newPassword) == "" {
		flash.SetFlash(ctx.Ctx, "error", "Informe a nova senha")
		return ctx.Redirect(accountPath, fiber.StatusFound)
	}

	if len(newPassword) < 8 {
		flash.SetFlash(ctx.Ctx, "error", "A nova senha deve ter pelo menos 8 caracteres")
		return ctx.Redirect(accountPath, fiber.StatusFound)
	}

	db := ctx.DB()

	user, err := users.FindByID(db, userID)
	if err != nil {
		ctx.Logger.Error("Failed to find user for password change", slog.Uint64("userID", uint64(userID)), slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Usuário não encontrado")
		return ctx.Redirect(accountPath, fiber.StatusFound)
	}

	if !crypto.VerifyPassword(user.EncryptedPassword, currentPassword) {
		ctx.Logger.Warn("Invalid current password provided during password change", slog.Uint64("userID", uint64(userID)))
		flash.SetFlash(ctx.Ctx, "error", "Senha atual incorreta")
		return ctx.Redirect(accountPath, fiber.StatusFound)
	}

	if err := users.ChangePassword(db, user.Email, newPassword); err != nil {
		ctx.Logger.Error("Failed to change password", slog.Uint64("userID", uint64(userID)), slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao alterar a senha")
		return ctx.Redirect(accountPath, fiber.StatusFound)
	}

	ctx.Logger.Info("Password changed successfully", slog.Uint64("userID", uint64(userID)), slog.String("email", user.Email))
	flash.SetFlash(ctx.Ctx, "success", "Senha alterada com sucesso")
	return ctx.Redirect(accountPath, fiber.StatusFound)
}
