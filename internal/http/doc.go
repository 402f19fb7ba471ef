// Package httpapp provides the HTTP server for Quill.
//
//	@title						Quill API
//	@version					1.0
//	@description				A multi-user blogging service: accounts, posts, comments and full-text search.
//	@description
//	@description				## Authentication
//	@description
//	@description				Register or log in to receive a bearer token, then send it on every write:
//	@description				```bash
//	@description				curl -X POST /auth/login -d '{"email":"me@example.com","password":"..."}'
//	@description				# Returns: {"user": {...}, "token": "TOKEN"}
//	@description				curl -X POST /posts -H "Authorization: Bearer TOKEN" -d '{"title":"Hi","content":"..."}'
//	@description				```
//	@description
//	@description				Reads (listing, fetching and searching) need no token.
//
//	@contact.name				Quill
//	@license.name				MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				"Bearer " followed by the token from /auth/register or /auth/login
//
//	@tag.name					Auth
//	@tag.description			Registration and login.
//
//	@tag.name					Posts
//	@tag.description			Write, browse and search posts. Only the author may edit or delete a post.
//
//	@tag.name					Comments
//	@tag.description			Flat comment lists under each post.
//
//	@tag.name					Ops
//	@tag.description			Health and build information.
package httpapp
