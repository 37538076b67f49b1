package handler

import (
	"net/http"

	"github.com/Sczr0/Next-Phi-Backend/internal/utils"
)

// RootHandler affiche toutes les routes disponibles de l'API
func RootHandler(w http.ResponseWriter, r *http.Request) {
	prefix := app.Cfg.API.Prefix
	routes := map[string]interface{}{
		"name":    "Next Phi Backend",
		"version": Version,
		"status":  "running",
		"routes": map[string]interface{}{
			"auth": []map[string]string{
				{"method": "POST", "path": prefix + "/auth/qrcode", "description": "Démarrer un login TapTap par QR code"},
				{"method": "GET", "path": prefix + "/auth/qrcode/{qrId}/status", "description": "État du login QR en cours"},
				{"method": "POST", "path": prefix + "/auth/user-id", "description": "Identifiant stable haché des credentials"},
			},
			"save": []map[string]string{
				{"method": "POST", "path": prefix + "/save", "description": "Sauvegarde cloud déchiffrée (param: calculateRks)"},
			},
			"rks": []map[string]string{
				{"method": "POST", "path": prefix + "/rks/history", "description": "Historique des versements RKS du joueur"},
			},
			"image": []map[string]string{
				{"method": "POST", "path": prefix + "/image/bn", "description": "Image BestN depuis la sauvegarde cloud"},
				{"method": "POST", "path": prefix + "/image/song", "description": "Image d'un chart unique (param: q)"},
				{"method": "POST", "path": prefix + "/image/bn/user", "description": "Image BestN depuis des scores auto-déclarés"},
			},
			"songs": []map[string]string{
				{"method": "GET", "path": prefix + "/songs/search", "description": "Recherche catalogue (params: q, unique, limit, offset)"},
			},
			"leaderboard": []map[string]string{
				{"method": "GET", "path": prefix + "/leaderboard/rks/top", "description": "Haut du classement (params: limit, offset, lite, afterScore...)"},
				{"method": "GET", "path": prefix + "/leaderboard/rks/by-rank", "description": "Tranche du classement (params: start, end)"},
				{"method": "POST", "path": prefix + "/leaderboard/rks/me", "description": "Position du joueur identifié"},
				{"method": "PUT", "path": prefix + "/leaderboard/alias", "description": "Poser ou remplacer l'alias public"},
				{"method": "PUT", "path": prefix + "/leaderboard/profile", "description": "Interrupteurs de visibilité du profil"},
				{"method": "GET", "path": prefix + "/public/profile/{alias}", "description": "Vue publique d'un joueur par alias"},
			},
			"stats": []map[string]string{
				{"method": "GET", "path": prefix + "/stats/summary", "description": "Compteurs globaux du service"},
				{"method": "GET", "path": prefix + "/stats/daily", "description": "Trafic par jour (params: start, end, tz, feature, route, method)"},
				{"method": "GET", "path": prefix + "/stats/daily/dau", "description": "Utilisateurs actifs par jour"},
				{"method": "GET", "path": prefix + "/stats/daily/features", "description": "Usage quotidien par feature"},
				{"method": "GET", "path": prefix + "/stats/daily/http", "description": "Volumes et taux d'erreur HTTP par jour"},
				{"method": "GET", "path": prefix + "/stats/latency", "description": "Latences agrégées (params: bucket, byRoute, byMethod, byFeature)"},
				{"method": "POST", "path": prefix + "/stats/archive/now", "description": "Archivage Parquet d'un jour (param: date)"},
			},
			"admin": []map[string]string{
				{"method": "GET", "path": prefix + "/admin/leaderboard/suspicious", "description": "Joueurs suspects ou masqués"},
				{"method": "POST", "path": prefix + "/admin/leaderboard/resolve", "description": "Statut de modération (pending/approved/rejected/shadow/banned)"},
				{"method": "POST", "path": prefix + "/admin/leaderboard/alias/force", "description": "Réassigner un alias d'autorité"},
			},
			"health": []map[string]string{
				{"method": "GET", "path": "/health", "description": "Health check de l'API"},
			},
		},
		"documentation": map[string]string{
			"description": "API REST pour Phigros - sauvegardes cloud, RKS et rendus d'images",
		},
	}

	utils.Success(w, routes)
}
