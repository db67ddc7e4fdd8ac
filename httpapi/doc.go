// Package httpapi serves the efficio JSON API over net/http.
//
// Routes:
//
//	POST   /user    {"username","password","email"} -> {"session_token"}
//	POST   /login   {"username","password"}         -> {"session_token"}
//	POST   /logout  header session_token
//	DELETE /user    header session_token
//	POST   /store   {"name"} + header               -> {"store_id"}
//	GET    /stores  header                          -> [{"store_id","name"}]
//	GET    /nuke    flush the database (only when enabled)
//
// Errors render {"msg":"..."} with status 406 for a taken username, 400 for
// bad credentials or malformed input, 401 for an unknown session, 429 when
// logins are throttled and 500 for backend failures.
package httpapi
