// Package server is the HTTP backend the sync engine persists to: accounts, bearer sessions and one playlist per user.
//
// # Routes
//
//	GET  /health                  database ping
//	POST /auth/signup             201 identity with token, 409 when the email is taken
//	POST /auth/login              200 identity with token, 401 on bad credentials
//	POST /auth/logout             204, revokes the bearer token
//	GET  /auth/me                 200 identity for the bearer token
//	GET  /playlists/{user_id}     200 playlist, 404 when never saved
//	PUT  /playlists/{user_id}     204 after replacing the stored playlist
//
// Playlist routes require a bearer token whose user matches {user_id}; anything else gets 403.
// Every error body is a JSON object with a single "error" field.
//
// # Router Infrastructure
//
// [BasicRouter] wraps [http.ServeMux] with method-qualified patterns. [Middleware] is applied in reverse order
// (last added wraps first). Custom handlers implement [Handler], which adds the list of patterns they serve so
// route definitions stay with the implementation.
//
// # Lifecycle
//
// [Server.Serve] runs the listener, a graceful shutdown watcher and the cron driven expired session purge in one
// errgroup; cancelling the context stops all three.
package server
