package cmstests

import (
	"net/http"

	"github.com/contentrepo/webscript-contract-tests/framework/jsontree"
	"github.com/contentrepo/webscript-contract-tests/framework/ldtest"
	"github.com/contentrepo/webscript-contract-tests/framework/restclient"
	"github.com/contentrepo/webscript-contract-tests/servicedef"

	"github.com/stretchr/testify/assert"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

func ratingsPath(n Node) string {
	return "api/node/" + n.Path() + "/ratings"
}

func rate(t *ldtest.T, n Node, user User, scheme string, value float64) ldvalue.Value {
	resp := newClient(t).Post(ratingsPath(n)).As(user.Creds()).
		JSON(servicedef.RatingParams{Rating: value, RatingScheme: scheme}).
		ExpectJSON(t, http.StatusOK)
	return jsontree.RequireObject(t, resp, "data")
}

func getRatings(t *ldtest.T, n Node, user User) ldvalue.Value {
	resp := newClient(t).Get(ratingsPath(n)).As(user.Creds()).ExpectJSON(t, http.StatusOK)
	return jsontree.RequireObject(t, resp, "data")
}

// ratedContent is a document in a public site, so that users other than its creator can
// read and rate it.
func ratedContent(t *ldtest.T) (Node, User) {
	owner := NewUser(t)
	site := NewSite(t, owner, servicedef.VisibilityPublic)
	return NewSiteContent(t, site, owner), owner
}

func DoRatingTests(t *ldtest.T) {
	t.RequireCapability(servicedef.CapabilityRatings)

	t.Run("scheme definitions", func(t *ldtest.T) {
		resp := newClient(t).Get("api/rating/schemedefinitions").As(NewUser(t).Creds()).
			ExpectJSON(t, http.StatusOK)
		schemes := jsontree.RequireArray(t, resp, "data", "ratingSchemes")
		byName := make(map[string]ldvalue.Value)
		for _, s := range schemes {
			byName[jsontree.RequireString(t, s, "name")] = s
		}

		likes, ok := byName[servicedef.LikesRatingScheme]
		if assert.True(t, ok, "likes scheme is defined") {
			assert.Equal(t, 1.0, jsontree.RequireFloat(t, likes, "minRating"))
			assert.Equal(t, 1.0, jsontree.RequireFloat(t, likes, "maxRating"))
			assert.True(t, jsontree.RequireBool(t, likes, "selfRatingAllowed"))
		}
		fiveStar, ok := byName[servicedef.FiveStarRatingScheme]
		if assert.True(t, ok, "five star scheme is defined") {
			assert.Equal(t, 1.0, jsontree.RequireFloat(t, fiveStar, "minRating"))
			assert.Equal(t, 5.0, jsontree.RequireFloat(t, fiveStar, "maxRating"))
			assert.False(t, jsontree.RequireBool(t, fiveStar, "selfRatingAllowed"))
		}
	})

	t.Run("unrated node", func(t *ldtest.T) {
		doc, owner := ratedContent(t)
		data := getRatings(t, doc, owner)
		assert.Equal(t, doc.NodeRef(), jsontree.RequireString(t, data, "nodeRef"))
		assert.Equal(t, 0, jsontree.Get(data, "ratings").Count())
		for _, scheme := range []string{servicedef.LikesRatingScheme, servicedef.FiveStarRatingScheme} {
			assert.Equal(t, -1.0, jsontree.RequireFloat(t, data, "nodeStatistics", scheme, "averageRating"))
			assert.Equal(t, 0, jsontree.RequireInt(t, data, "nodeStatistics", scheme, "ratingsCount"))
		}
	})

	t.Run("apply ratings", func(t *ldtest.T) {
		doc, _ := ratedContent(t)
		rater1, rater2 := NewUser(t), NewUser(t)

		applied := rate(t, doc, rater1, servicedef.FiveStarRatingScheme, 5)
		assert.Equal(t, servicedef.FiveStarRatingScheme, jsontree.RequireString(t, applied, "ratingScheme"))
		assert.Equal(t, 5.0, jsontree.RequireFloat(t, applied, "rating"))
		assert.Equal(t, 1, jsontree.RequireInt(t, applied, "ratingsCount"))
		jsontree.RequireString(t, applied, "ratedNodeUrl")

		applied = rate(t, doc, rater2, servicedef.FiveStarRatingScheme, 2)
		assert.Equal(t, 3.5, jsontree.RequireFloat(t, applied, "averageRating"))
		assert.Equal(t, 2, jsontree.RequireInt(t, applied, "ratingsCount"))
		assert.Equal(t, 7.0, jsontree.RequireFloat(t, applied, "ratingsTotal"))

		data := getRatings(t, doc, rater1)
		assert.Equal(t, 5.0, jsontree.RequireFloat(t, data, "ratings", servicedef.FiveStarRatingScheme, "rating"))
		assert.Equal(t, rater1.UserName, jsontree.RequireString(t, data, "ratings", servicedef.FiveStarRatingScheme, "appliedBy"))
		assert.False(t, jsontree.Has(data, "ratings", servicedef.LikesRatingScheme))
		assert.Equal(t, 3.5, jsontree.RequireFloat(t, data, "nodeStatistics", servicedef.FiveStarRatingScheme, "averageRating"))

		t.Run("re-rating replaces the previous rating", func(t *ldtest.T) {
			applied := rate(t, doc, rater2, servicedef.FiveStarRatingScheme, 4)
			assert.Equal(t, 4.5, jsontree.RequireFloat(t, applied, "averageRating"))
			assert.Equal(t, 2, jsontree.RequireInt(t, applied, "ratingsCount"))
		})
	})

	t.Run("self rating", func(t *ldtest.T) {
		doc, owner := ratedContent(t)
		newClient(t).Post(ratingsPath(doc)).As(owner.Creds()).
			JSON(servicedef.RatingParams{Rating: 5, RatingScheme: servicedef.FiveStarRatingScheme}).
			Expect(t, http.StatusBadRequest)

		applied := rate(t, doc, owner, servicedef.LikesRatingScheme, 1)
		assert.Equal(t, 1, jsontree.RequireInt(t, applied, "ratingsCount"))
	})

	t.Run("invalid ratings", func(t *ldtest.T) {
		doc, _ := ratedContent(t)
		rater := NewUser(t)
		for _, params := range []servicedef.RatingParams{
			{Rating: 6, RatingScheme: servicedef.FiveStarRatingScheme},
			{Rating: 0, RatingScheme: servicedef.FiveStarRatingScheme},
			{Rating: 2, RatingScheme: servicedef.LikesRatingScheme},
			{Rating: 1, RatingScheme: "noSuchScheme"},
		} {
			newClient(t).Post(ratingsPath(doc)).As(rater.Creds()).JSON(params).
				Expect(t, http.StatusBadRequest)
		}
		assert.Equal(t, 0, jsontree.Get(getRatings(t, doc, rater), "ratings").Count())
	})

	t.Run("remove rating", func(t *ldtest.T) {
		doc, _ := ratedContent(t)
		rater1, rater2 := NewUser(t), NewUser(t)
		rate(t, doc, rater1, servicedef.FiveStarRatingScheme, 1)
		rate(t, doc, rater2, servicedef.FiveStarRatingScheme, 3)

		path := ratingsPath(doc) + "/" + restclient.Pathf("%s", servicedef.FiveStarRatingScheme)
		resp := newClient(t).Delete(path).As(rater1.Creds()).ExpectJSON(t, http.StatusOK)
		assert.Equal(t, 3.0, jsontree.RequireFloat(t, resp, "data", "averageRating"))
		assert.Equal(t, 1, jsontree.RequireInt(t, resp, "data", "ratingsCount"))

		newClient(t).Delete(path).As(rater1.Creds()).Expect(t, http.StatusNotFound)
	})

	t.Run("unreadable node", func(t *ldtest.T) {
		owner := NewUser(t)
		site := NewSite(t, owner, servicedef.VisibilityPrivate)
		doc := NewSiteContent(t, site, owner)
		newClient(t).Get(ratingsPath(doc)).As(NewUser(t).Creds()).Expect(t, http.StatusNotFound)
	})
}
