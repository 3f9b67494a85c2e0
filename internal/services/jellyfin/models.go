package jellyfin

// ItemCounts mirrors the /Items/Counts response.
type ItemCounts struct {
	MovieCount      int `json:"MovieCount"`
	SeriesCount     int `json:"SeriesCount"`
	EpisodeCount    int `json:"EpisodeCount"`
	ArtistCount     int `json:"ArtistCount"`
	ProgramCount    int `json:"ProgramCount"`
	TrailerCount    int `json:"TrailerCount"`
	SongCount       int `json:"SongCount"`
	AlbumCount      int `json:"AlbumCount"`
	MusicVideoCount int `json:"MusicVideoCount"`
	BoxSetCount     int `json:"BoxSetCount"`
	BookCount       int `json:"BookCount"`
	ItemCount       int `json:"ItemCount"`
}

// User is the subset of a Jellyfin user jellywatch reads.
type User struct {
	ID               string `json:"Id"`
	Name             string `json:"Name"`
	HasPassword      bool   `json:"HasPassword"`
	LastActivityDate string `json:"LastActivityDate,omitempty"`
}

// Library is a user view as returned by /Users/{id}/Views.
type Library struct {
	ID             string `json:"Id"`
	Name           string `json:"Name"`
	CollectionType string `json:"CollectionType,omitempty"`
	Type           string `json:"Type,omitempty"`
}

type viewsResponse struct {
	Items            []Library `json:"Items"`
	TotalRecordCount int       `json:"TotalRecordCount"`
}
