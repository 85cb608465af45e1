package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/crypto"
	"github.com/karloscodes/cartridge/flash"
	"github.com/karloscodes/cartridge/inertia"
	"log/slog"

	"psibuilder/internal/onboarding"
	"psibuilder/internal/users"
)

// RenderLoginAction renders the login page
func RenderLoginAction(ctx *cartridge.Context) error {
	if ctx.Session.IsAuthenticated(ctx.Ctx) {
		return ctx.Redirect("/admin/dashboard")
	}

	return inertia.RenderPage(ctx.Ctx, "Login", inertia.Props{})
}

// ProcessLoginAction handles the login form submission
func ProcessLoginAction(ctx *cartridge.Context) error {
	// Parse login form - try both form value and JSON body (for Inertia.js)
	email := ctx.FormValue("email")
	password := ctx.FormValue("password")

	if email == "" && password == "" {
		var jsonBody struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := ctx.BodyParser(&jsonBody); err == nil {
			email = jsonBody.Email
			password = jsonBody.Password
		}
	}

	if email == "" || password == "" {
		flash.SetFlash(ctx.Ctx, "error", "Informe email e senha")
		return ctx.Redirect("/login", fiber.StatusFound)
	}

	db := ctx.DB()

	user, result := users.FindByEmail(db, email)

	// Always verify a password to keep response time constant whether or not
	// the email exists.
	var passwordValid bool
	if result != nil {
		ctx.Logger.Debug("User not found during login", slog.String("email", email))
		dummyHash := "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy" // bcrypt hash of "dummy"
		crypto.VerifyPassword(dummyHash, password)
		passwordValid = false
	} else {
		passwordValid = crypto.VerifyPassword(user.EncryptedPassword, password)
		if !passwordValid {
			ctx.Logger.Debug("Invalid password attempt", slog.String("email", email))
		}
	}

	if !passwordValid {
		// Generic error message - don't reveal whether email exists
		flash.SetFlash(ctx.Ctx, "error", "Email ou senha inválidos")
		return ctx.Redirect("/login", fiber.StatusFound)
	}

	if err := ctx.Session.SetSession(ctx.Ctx, user.ID); err != nil {
		ctx.Logger.Error("Failed to set session", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao entrar, tente novamente")
		return ctx.Redirect("/login", fiber.StatusFound)
	}

	ctx.Logger.Debug("Login successful",
		slog.String("email", email),
		slog.Int("userId", int(user.ID)))

	// Accounts without a completed profile resume the setup wizard.
	required, err := onboarding.IsOnboardingRequired(db, user.ID)
	if err != nil {
		ctx.Logger.Error("Failed to check onboarding state after login", slog.Any("error", err))
	}
	if required {
		return ctx.Redirect("/onboarding", fiber.StatusFound)
	}

	return ctx.Redirect("/admin/dashboard", fiber.StatusFound)
}

// RenderSignupAction renders the account creation page
func RenderSignupAction(ctx *cartridge.Context) error {
	if ctx.Session.IsAuthenticated(ctx.Ctx) {
		return ctx.Redirect("/admin/dashboard")
	}

	return inertia.RenderPage(ctx.Ctx, "Signup", inertia.Props{})
}

// ProcessSignupAction creates a new account and sends the user straight into
// the onboarding wizard.
func ProcessSignupAction(ctx *cartridge.Context) error {
	email := strings.TrimSpace(ctx.FormValue("email"))
	password := ctx.FormValue("password")
	confirmPassword := ctx.FormValue("confirm_password")

	if email == "" && password == "" {
		var jsonBody struct {
			Email           string `json:"email"`
			Password        string `json:"password"`
			ConfirmPassword string `json:"confirm_password"`
		}
		if err := ctx.BodyParser(&jsonBody); err == nil {
			email = strings.TrimSpace(jsonBody.Email)
			password = jsonBody.Password
			confirmPassword = jsonBody.ConfirmPassword
		}
	}

	if email == "" || !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		flash.SetFlash(ctx.Ctx, "error", "Informe um email válido")
		return ctx.Redirect("/signup", fiber.StatusFound)
	}
	if len(password) < 8 {
		flash.SetFlash(ctx.Ctx, "error", "A senha deve ter pelo menos 8 caracteres")
		return ctx.Redirect("/signup", fiber.StatusFound)
	}
	if password != confirmPassword {
		flash.SetFlash(ctx.Ctx, "error", "As senhas não conferem")
		return ctx.Redirect("/signup", fiber.StatusFound)
	}

	db := ctx.DB()

	user, err := users.CreateUser(db, email, password)
	if err != nil {
		if err == users.ErrUserExists {
			flash.SetFlash(ctx.Ctx, "error", "Este email já está cadastrado")
			return ctx.Redirect("/signup", fiber.StatusFound)
		}
		ctx.Logger.Error("Failed to create user", slog.Any("error", err), slog.String("email", email))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao criar a conta, tente novamente")
		return ctx.Redirect("/signup", fiber.StatusFound)
	}

	if err := ctx.Session.SetSession(ctx.Ctx, user.ID); err != nil {
		ctx.Logger.Error("Failed to set session after signup", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "success", "Conta criada, faça login para continuar")
		return ctx.Redirect("/login", fiber.StatusFound)
	}

	ctx.Logger.Info("Account created",
		slog.Uint64("userId", uint64(user.ID)),
		slog.String("email", email))

	return ctx.Redirect("/onboarding", fiber.StatusFound)
}

// LogoutAction handles user logout
func LogoutAction(ctx *cartridge.Context) error {
	userID, isAuthenticated := ctx.Session.GetUserID(ctx.Ctx)
	ctx.Logger.Debug("LogoutAction: Current auth state",
		slog.Uint64("userID", uint64(userID)),
		slog.Bool("isAuthenticated", isAuthenticated))

	ctx.Session.ClearSession(ctx.Ctx)

	flash.SetFlash(ctx.Ctx, "success", "Você saiu da sua conta")
	return ctx.Redirect("/login", fiber.StatusFound)
}
