package handler

import (
	"net/http"

	"github.com/Sczr0/Next-Phi-Backend/internal/authclient"
	"github.com/Sczr0/Next-Phi-Backend/internal/catalog"
	"github.com/Sczr0/Next-Phi-Backend/internal/config"
	"github.com/Sczr0/Next-Phi-Backend/internal/render"
	"github.com/Sczr0/Next-Phi-Backend/internal/saveprovider"
	"github.com/Sczr0/Next-Phi-Backend/internal/stats"
	"github.com/Sczr0/Next-Phi-Backend/internal/utils"
)

// ServiceName et Version identifient le service dans /health.
const (
	ServiceName = "next-phi-backend"
	Version     = "2.0.0"
)

// App porte les dépendances partagées des handlers. Store et Archiver
// sont nil quand la télémétrie est désactivée.
type App struct {
	Cfg      *config.Config
	Catalog  *catalog.Catalog
	Provider *saveprovider.Provider
	Auth     *authclient.Service
	Renderer *render.Renderer
	Store    *stats.Store
	Archiver *stats.Archiver
}

var app *App

// Init enregistre les dépendances du paquet avant le montage des routes.
func Init(a *App) {
	app = a
}

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	utils.Success(w, map[string]string{
		"status":  "healthy",
		"service": ServiceName,
		"version": Version,
	})
}
