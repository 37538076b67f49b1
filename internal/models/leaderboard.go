package models

import "time"

// LeaderboardEntry est une ligne publique du classement RKS.
type LeaderboardEntry struct {
	Rank        int       `json:"rank"`
	UserHash    string    `json:"userHash"`
	Alias       string    `json:"alias,omitempty"`
	RKS         float64   `json:"rks"`
	UpdatedAt   time.Time `json:"updatedAt"`
	IsHidden    bool      `json:"-"`
	Suspicion   float64   `json:"-"`
}

// UserProfile porte les préférences d'affichage d'un joueur du classement.
type UserProfile struct {
	UserHash           string    `json:"userHash"`
	Alias              string    `json:"alias,omitempty"`
	ShowRksComposition bool      `json:"showRksComposition"`
	ShowBestTop3       bool      `json:"showBestTop3"`
	ShowApTop3         bool      `json:"showApTop3"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Submission trace une soumission de sauvegarde pour la modération.
type Submission struct {
	ID            int64     `json:"id"`
	UserHash      string    `json:"userHash"`
	RKS           float64   `json:"rks"`
	PreviousRKS   float64   `json:"previousRks"`
	Jump          float64   `json:"jump"`
	OfficialToken bool      `json:"officialToken"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

// LeaderboardDetail est la composition RKS persistée d'un joueur
// (exposée seulement si son profil l'autorise).
type LeaderboardDetail struct {
	UserHash    string       `json:"userHash"`
	Best        []BestRecord `json:"best,omitempty"`
	AP          []BestRecord `json:"ap,omitempty"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// ModerationEntry est la vue admin d'un joueur suspect. Status reflète la
// dernière décision journalisée, pending tant qu'aucune n'a été prise.
type ModerationEntry struct {
	UserHash  string    `json:"userHash"`
	Alias     string    `json:"alias,omitempty"`
	RKS       float64   `json:"rks"`
	Suspicion float64   `json:"suspicion"`
	IsHidden  bool      `json:"isHidden"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ModerationFlag est une décision de modération journalisée.
type ModerationFlag struct {
	ID        int64     `json:"id"`
	UserHash  string    `json:"userHash"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	Admin     string    `json:"admin,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
