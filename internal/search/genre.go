package search

import "strings"

// genreKeywords maps a coarse genre tag to the phrases that imply it.
// Matching is case-insensitive substring search over whatever text the
// upstream provides (tags, titles, descriptions). First hit wins in the
// iteration order below.
var genreOrder = []string{"scifi", "fantasy", "comedy", "drama", "action"}

var genreKeywords = map[string][]string{
	"scifi": {
		"sci-fi", "science fiction", "space", "future", "star wars",
		"star trek", "matrix", "blade runner", "alien", "terminator",
		"cyberpunk",
	},
	"fantasy": {
		"fantasy", "magic", "wizard", "dragon", "lord of the rings",
		"harry potter", "game of thrones", "witcher", "dungeons", "d&d",
	},
	"comedy": {
		"comedy", "funny", "humor", "humour", "comic", "sitcom", "office",
		"friends", "parks and rec",
	},
	"drama": {
		"drama", "tragedy", "emotional", "serious", "melodrama", "soap",
	},
	"action": {
		"action", "adventure", "hero", "warrior", "fight", "battle",
		"marvel", "dc", "superhero", "batman", "iron man", "avengers",
	},
}

// InferGenre derives a genre tag from free text, or "" when nothing matches.
func InferGenre(texts ...string) string {
	joined := strings.ToLower(strings.Join(texts, " "))
	if joined == "" {
		return ""
	}
	for _, genre := range genreOrder {
		for _, kw := range genreKeywords[genre] {
			if strings.Contains(joined, kw) {
				return genre
			}
		}
	}
	return ""
}
