package handler

import (
	"net/http"

	"github.com/Sczr0/Next-Phi-Backend/internal/utils"
)

const docsPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Next Phi Backend - API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: "/api-docs/openapi.json",
      dom_id: "#swagger-ui",
    });
  </script>
</body>
</html>
`

// Docs sert la page de documentation interactive
func Docs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(docsPage))
}

func operation(tag, summary string, params ...map[string]interface{}) map[string]interface{} {
	op := map[string]interface{}{
		"tags":    []string{tag},
		"summary": summary,
		"responses": map[string]interface{}{
			"200": map[string]interface{}{"description": "OK"},
			"default": map[string]interface{}{
				"description": "Erreur au format RFC 7807",
				"content": map[string]interface{}{
					"application/problem+json": map[string]interface{}{},
				},
			},
		},
	}
	if len(params) > 0 {
		op["parameters"] = params
	}
	return op
}

func queryParam(name, typ, desc string) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "query",
		"description": desc,
		"schema":      map[string]string{"type": typ},
	}
}

func pathParam(name, desc string) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "path",
		"required":    true,
		"description": desc,
		"schema":      map[string]string{"type": "string"},
	}
}

// OpenAPISpec sert le document OpenAPI statique de l'API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	prefix := app.Cfg.API.Prefix

	rangeParams := []map[string]interface{}{
		queryParam("start", "string", "Début de fenêtre, YYYY-MM-DD"),
		queryParam("end", "string", "Fin de fenêtre, YYYY-MM-DD"),
		queryParam("tz", "string", "Fuseau IANA du découpage journalier"),
	}

	doc := map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":       "Next Phi Backend",
			"description": "API REST pour Phigros - sauvegardes cloud, RKS et rendus d'images",
			"version":     Version,
		},
		"paths": map[string]interface{}{
			"/health": map[string]interface{}{
				"get": operation("health", "Health check de l'API"),
			},
			prefix + "/auth/qrcode": map[string]interface{}{
				"post": operation("auth", "Démarrer un login TapTap par QR code"),
			},
			prefix + "/auth/qrcode/{qrId}/status": map[string]interface{}{
				"get": operation("auth", "État du login QR en cours",
					pathParam("qrId", "Identifiant de session QR")),
			},
			prefix + "/auth/user-id": map[string]interface{}{
				"post": operation("auth", "Identifiant stable haché des credentials"),
			},
			prefix + "/save": map[string]interface{}{
				"post": operation("save", "Sauvegarde cloud déchiffrée",
					queryParam("calculateRks", "boolean", "Joindre l'analyse RKS au résultat")),
			},
			prefix + "/rks/history": map[string]interface{}{
				"post": operation("rks", "Historique des versements RKS du joueur"),
			},
			prefix + "/image/bn": map[string]interface{}{
				"post": operation("image", "Image BestN depuis la sauvegarde cloud",
					queryParam("n", "integer", "Nombre de charts affichés"),
					queryParam("format", "string", "png, jpeg, webp ou svg")),
			},
			prefix + "/image/song": map[string]interface{}{
				"post": operation("image", "Image d'un chart unique",
					queryParam("q", "string", "Requête catalogue, résolution unique exigée")),
			},
			prefix + "/image/bn/user": map[string]interface{}{
				"post": operation("image", "Image BestN depuis des scores auto-déclarés"),
			},
			prefix + "/songs/search": map[string]interface{}{
				"get": operation("songs", "Recherche catalogue",
					queryParam("q", "string", "Texte recherché"),
					queryParam("unique", "boolean", "Exiger un résultat unique"),
					queryParam("limit", "integer", "Taille de page, 1 à 100"),
					queryParam("offset", "integer", "Décalage de page")),
			},
			prefix + "/leaderboard/rks/top": map[string]interface{}{
				"get": operation("leaderboard", "Haut du classement",
					queryParam("limit", "integer", "Taille de page"),
					queryParam("offset", "integer", "Décalage de page"),
					queryParam("lite", "boolean", "Vue allégée")),
			},
			prefix + "/leaderboard/rks/by-rank": map[string]interface{}{
				"get": operation("leaderboard", "Tranche du classement",
					queryParam("start", "integer", "Premier rang inclus"),
					queryParam("end", "integer", "Dernier rang inclus")),
			},
			prefix + "/leaderboard/rks/me": map[string]interface{}{
				"post": operation("leaderboard", "Position du joueur identifié"),
			},
			prefix + "/leaderboard/alias": map[string]interface{}{
				"put": operation("leaderboard", "Poser ou remplacer l'alias public"),
			},
			prefix + "/leaderboard/profile": map[string]interface{}{
				"put": operation("leaderboard", "Interrupteurs de visibilité du profil"),
			},
			prefix + "/public/profile/{alias}": map[string]interface{}{
				"get": operation("leaderboard", "Vue publique d'un joueur par alias",
					pathParam("alias", "Alias public du joueur")),
			},
			prefix + "/stats/summary": map[string]interface{}{
				"get": operation("stats", "Compteurs globaux du service"),
			},
			prefix + "/stats/daily": map[string]interface{}{
				"get": operation("stats", "Trafic par jour local", rangeParams...),
			},
			prefix + "/stats/daily/dau": map[string]interface{}{
				"get": operation("stats", "Utilisateurs actifs par jour", rangeParams...),
			},
			prefix + "/stats/daily/features": map[string]interface{}{
				"get": operation("stats", "Usage quotidien par feature", rangeParams...),
			},
			prefix + "/stats/daily/http": map[string]interface{}{
				"get": operation("stats", "Volumes et taux d'erreur HTTP par jour", rangeParams...),
			},
			prefix + "/stats/latency": map[string]interface{}{
				"get": operation("stats", "Latences agrégées",
					append(rangeParams,
						queryParam("bucket", "string", "day, week ou month"),
						queryParam("byRoute", "boolean", "Ventiler par route"),
						queryParam("byMethod", "boolean", "Ventiler par méthode"),
						queryParam("byFeature", "boolean", "Ventiler par feature"))...),
			},
			prefix + "/admin/leaderboard/suspicious": map[string]interface{}{
				"get": operation("admin", "Joueurs suspects ou masqués"),
			},
			prefix + "/admin/leaderboard/resolve": map[string]interface{}{
				"post": operation("admin", "Statut de modération d'un joueur"),
			},
			prefix + "/admin/leaderboard/alias/force": map[string]interface{}{
				"post": operation("admin", "Réassigner un alias d'autorité"),
			},
			prefix + "/stats/archive/now": map[string]interface{}{
				"post": operation("stats", "Archivage Parquet d'un jour",
					queryParam("date", "string", "Jour YYYY-MM-DD, la veille par défaut")),
			},
		},
	}

	utils.Success(w, doc)
}
