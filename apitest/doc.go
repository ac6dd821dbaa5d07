// Package apitest runs an in-process fake of the backend API for tests. It
// issues real HS256 tokens, implements the login and renewal endpoints, and
// lets tests register their own routes behind the same bearer check.
//
//	srv := apitest.New(t, apitest.WithUser("ada", "secret", "acme"))
//	srv.HandleAuth(http.MethodGet, "/api/items", func(c *gin.Context) {
//	    c.JSON(http.StatusOK, gin.H{"items": []string{"a"}})
//	})
//	client, _ := rest.New(httpclient.Config{BaseURL: srv.URL}, store)
package apitest
