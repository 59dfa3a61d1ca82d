package servicedef

const (
	LikesRatingScheme    = "likesRatingScheme"
	FiveStarRatingScheme = "fiveStarRatingScheme"
)

type RatingParams struct {
	Rating       float64 `json:"rating"`
	RatingScheme string  `json:"ratingScheme"`
}
