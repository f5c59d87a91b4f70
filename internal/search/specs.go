package search

// AppSpec captures where the three upstream apps differ: API prefix, item
// naming, wanted-record id fields, and command shape. Everything else in a
// run is identical across them.
type AppSpec struct {
	Name        string // config key and bucket prefix, e.g. "sonarr"
	ItemType    string // "series" | "movie" | "artist"
	LibraryPath string // "/series" | "/movie" | "/artist"
	APIPrefix   string // "/api/v3" | "/api/v1"

	// WantedIDKeys are tried in order against each wanted record.
	WantedIDKeys []string

	CommandName string

	// Exactly one of these is set. Radarr takes the whole pick list in one
	// batched command; the others take one command per item.
	CommandIDField string // per-item payload field, e.g. "seriesId"
	BatchIDsField  string // batched payload field, e.g. "movieIds"
}

// Specs indexes the supported apps by config key.
var Specs = map[string]AppSpec{
	"sonarr": {
		Name:           "sonarr",
		ItemType:       "series",
		LibraryPath:    "/series",
		APIPrefix:      "/api/v3",
		WantedIDKeys:   []string{"seriesId"},
		CommandName:    "SeriesSearch",
		CommandIDField: "seriesId",
	},
	"radarr": {
		Name:          "radarr",
		ItemType:      "movie",
		LibraryPath:   "/movie",
		APIPrefix:     "/api/v3",
		WantedIDKeys:  []string{"movieId", "movie"},
		CommandName:   "MoviesSearch",
		BatchIDsField: "movieIds",
	},
	"lidarr": {
		Name:           "lidarr",
		ItemType:       "artist",
		LibraryPath:    "/artist",
		APIPrefix:      "/api/v1",
		WantedIDKeys:   []string{"artistId", "artist"},
		CommandName:    "ArtistSearch",
		CommandIDField: "artistId",
	},
}
