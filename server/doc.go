// Package server exposes a pointcount.DB over HTTP/JSON.
//
// Routes live under a base path (default /v1/NN):
//
//	GET    /users/info               {"message":"OK","user_count":n}
//	GET    /users?page=&pagesize=    one page of users keyed by id
//	POST   /users                    {"x":..,"y":..} -> 201 + user_url
//	GET    /users/{id}               {"message":"OK","x":..,"y":..}
//	POST   /users/{id}               partial update of x and/or y
//	DELETE /users/{id}
//	GET    /users/knn?R=&U=&dist=Y   records within R of user U, excluding U
//	GET    /users.geojson            one page of users as a FeatureCollection
//
// Every JSON body except the GeoJSON listing is an envelope with a "message"
// field. Errors map onto status codes in one place (statusFor).
package server
