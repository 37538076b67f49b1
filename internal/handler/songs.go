package handler

import (
	"net/http"
	"strings"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
	"github.com/Sczr0/Next-Phi-Backend/internal/catalog"
	"github.com/Sczr0/Next-Phi-Backend/internal/utils"
)

// SearchSongs interroge le catalogue. unique=true exige exactement un
// résultat et le retourne seul.
func SearchSongs(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		utils.Problem(w, r, apperr.New(apperr.KindValidation, "missing query").
			WithField("q", "MISSING", "query parameter required"))
		return
	}

	limit, err := utils.QueryInt(r, "limit", 20)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	offset, err := utils.QueryInt(r, "offset", 0)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}

	page, song, err := app.Catalog.Search(query, catalog.SearchOptions{
		Unique: utils.QueryBool(r, "unique", false),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	if song != nil {
		utils.Success(w, song)
		return
	}
	utils.Success(w, page)
}
