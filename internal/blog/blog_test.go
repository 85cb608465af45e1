package blog_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psibuilder/internal/blog"
	"psibuilder/internal/subscriptions"
	"psibuilder/internal/testsupport"
)

func setupBlogSite(t *testing.T) (uint, uint) {
	t.Helper()
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)

	user := testsupport.CreateTestUser(db, "blog@example.com", "x")
	profile := testsupport.CreateTestProfile(t, db, user.ID, "Ana Carvalho")
	site := testsupport.CreateTestSite(t, db, profile.ID, "ana-blog")
	return user.ID, site.ID
}

func TestCreatePost(t *testing.T) {
	t.Run("derives slug from title", func(t *testing.T) {
		userID, siteID := setupBlogSite(t)
		db := testsupport.SetupTestDB(t)
		logger := testsupport.GetLogger()

		post := blog.Post{SiteID: siteID, Title: "Ansiedade: como lidar?", Content: "corpo"}
		require.NoError(t, blog.CreatePost(db, logger, userID, &post))
		assert.Equal(t, "ansiedade-como-lidar", post.Slug)
		assert.Nil(t, post.PublishedAt)
	})

	t.Run("dedupes slug within the site", func(t *testing.T) {
		userID, siteID := setupBlogSite(t)
		db := testsupport.SetupTestDB(t)
		logger := testsupport.GetLogger()

		first := blog.Post{SiteID: siteID, Title: "Terapia online", Content: "a"}
		require.NoError(t, blog.CreatePost(db, logger, userID, &first))

		second := blog.Post{SiteID: siteID, Title: "Terapia online", Content: "b"}
		require.NoError(t, blog.CreatePost(db, logger, userID, &second))

		assert.Equal(t, "terapia-online", first.Slug)
		assert.Equal(t, "terapia-online-2", second.Slug)
	})

	t.Run("sets published timestamp on publish", func(t *testing.T) {
		userID, siteID := setupBlogSite(t)
		db := testsupport.SetupTestDB(t)
		logger := testsupport.GetLogger()

		post := blog.Post{SiteID: siteID, Title: "Publicado", Content: "x", IsPublished: true}
		require.NoError(t, blog.CreatePost(db, logger, userID, &post))
		require.NotNil(t, post.PublishedAt)
	})

	t.Run("rejects empty title", func(t *testing.T) {
		userID, siteID := setupBlogSite(t)
		db := testsupport.SetupTestDB(t)

		post := blog.Post{SiteID: siteID, Content: "x"}
		require.Error(t, blog.CreatePost(db, testsupport.GetLogger(), userID, &post))
	})
}

func TestCreatePostPlanLimit(t *testing.T) {
	t.Run("free plan stops at its limit", func(t *testing.T) {
		userID, siteID := setupBlogSite(t)
		db := testsupport.SetupTestDB(t)
		logger := testsupport.GetLogger()

		limit := subscriptions.PlanLimits(subscriptions.PlanFree).BlogPosts
		for i := 0; i < limit; i++ {
			post := blog.Post{SiteID: siteID, Title: fmt.Sprintf("Artigo %d", i), Content: "x"}
			require.NoError(t, blog.CreatePost(db, logger, userID, &post))
		}

		over := blog.Post{SiteID: siteID, Title: "Um a mais", Content: "x"}
		err := blog.CreatePost(db, logger, userID, &over)
		assert.ErrorIs(t, err, blog.ErrPostLimitReached)
	})

	t.Run("pro plan is unlimited", func(t *testing.T) {
		userID, siteID := setupBlogSite(t)
		db := testsupport.SetupTestDB(t)
		logger := testsupport.GetLogger()

		require.NoError(t, subscriptions.Upsert(db, logger, &subscriptions.Subscription{
			UserID: userID,
			Plan:   subscriptions.PlanPro,
			Status: subscriptions.StatusActive,
		}))

		freeLimit := subscriptions.PlanLimits(subscriptions.PlanFree).BlogPosts
		for i := 0; i < freeLimit+3; i++ {
			post := blog.Post{SiteID: siteID, Title: fmt.Sprintf("Artigo %d", i), Content: "x"}
			require.NoError(t, blog.CreatePost(db, logger, userID, &post))
		}
	})
}

func TestGetPublishedPosts(t *testing.T) {
	userID, siteID := setupBlogSite(t)
	db := testsupport.SetupTestDB(t)
	logger := testsupport.GetLogger()

	published := blog.Post{SiteID: siteID, Title: "Visível", Content: "x", IsPublished: true}
	require.NoError(t, blog.CreatePost(db, logger, userID, &published))

	draft := blog.Post{SiteID: siteID, Title: "Rascunho", Content: "x"}
	require.NoError(t, blog.CreatePost(db, logger, userID, &draft))

	posts, err := blog.GetPublishedPosts(db, siteID)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "Visível", posts[0].Title)

	all, err := blog.GetPostsForSite(db, siteID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDeletePost(t *testing.T) {
	userID, siteID := setupBlogSite(t)
	db := testsupport.SetupTestDB(t)
	logger := testsupport.GetLogger()

	post := blog.Post{SiteID: siteID, Title: "Para excluir", Content: "x"}
	require.NoError(t, blog.CreatePost(db, logger, userID, &post))

	require.NoError(t, blog.DeletePost(db, logger, siteID, post.ID))

	_, err := blog.GetPostByID(db, post.ID)
	require.Error(t, err)

	// Deleting again reports not found.
	require.Error(t, blog.DeletePost(db, logger, siteID, post.ID))

	// A post cannot be deleted through another site's scope.
	other := blog.Post{SiteID: siteID, Title: "Alheio", Content: "x"}
	require.NoError(t, blog.CreatePost(db, logger, userID, &other))
	require.Error(t, blog.DeletePost(db, logger, siteID+1, other.ID))
}
