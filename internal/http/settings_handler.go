package http

import (
	"net"
	"strings"

	"github.com/gofiber/fiber/v2"
	"log/slog"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/flash"
	"psibuilder/internal/settings"
)

const statisticsPath = "/admin/statistics"

// validateIPList validates a comma-separated list of IP addresses
func validateIPList(ipList string) (bool, string) {
	if ipList == "" {
		return true, ""
	}

	ips := strings.Split(ipList, ",")
	for _, ip := range ips {
		ip = strings.TrimSpace(ip)
		if ip == "" {
			continue
		}

		parsed := net.ParseIP(ip)
		if parsed == nil {
			return false, "Endereço IP inválido: " + ip
		}
	}

	return true, ""
}

// TrackingSettingsFormAction saves the excluded-IPs filter so owners can
// keep their own visits out of the statistics (Inertia)
func TrackingSettingsFormAction(ctx *cartridge.Context) error {
	excludedIPs := ctx.FormValue("excluded_ips")

	if valid, msg := validateIPList(excludedIPs); !valid {
		ctx.Logger.Warn("invalid IP format submitted", slog.String("error", msg))
		flash.SetFlash(ctx.Ctx, "error", msg)
		return ctx.Redirect(statisticsPath, fiber.StatusFound)
	}

	db := ctx.DB()

	if err := settings.UpdateSetting(db, "excluded_ips", excludedIPs); err != nil {
		ctx.Logger.Error("failed to update excluded_ips setting", slog.Any("error", err))
		flash.SetFlash(ctx.Ctx, "error", "Falha ao salvar o filtro de IPs")
		return ctx.Redirect(statisticsPath, fiber.StatusFound)
	}

	ctx.Logger.Info("excluded IPs updated via form")
	flash.SetFlash(ctx.Ctx, "success", "Filtro de IPs salvo")
	return ctx.Redirect(statisticsPath, fiber.StatusFound)
}
