package proxy

import "net/http"

// Endpoint declares one proxied route: where it is served locally, where it
// forwards upstream, which token scope it needs, and which body fields must
// be present before any network call happens. The router registers every
// entry through the same generic handler.
type Endpoint struct {
	Name             string
	Method           string
	LocalPath        string
	UpstreamPath     string
	UseLocationToken bool
	// InjectLocationParam names a query parameter filled with the resolved
	// installation's location id, for upstream list endpoints that require it.
	InjectLocationParam string
	// RequiredFields is the allow-list validation applied to JSON bodies.
	RequiredFields []string
}

// Endpoints is the canonical proxy endpoint table.
func Endpoints() []Endpoint {
	return []Endpoint{
		{
			Name:                "products.list",
			Method:              http.MethodGet,
			LocalPath:           "/api/products",
			UpstreamPath:        "/products/",
			InjectLocationParam: "locationId",
		},
		{
			Name:           "products.create",
			Method:         http.MethodPost,
			LocalPath:      "/api/products",
			UpstreamPath:   "/products/",
			RequiredFields: []string{"name", "locationId", "productType"},
		},
		{
			Name:         "products.get",
			Method:       http.MethodGet,
			LocalPath:    "/api/products/:productId",
			UpstreamPath: "/products/:productId",
		},
		{
			Name:           "products.update",
			Method:         http.MethodPut,
			LocalPath:      "/api/products/:productId",
			UpstreamPath:   "/products/:productId",
			RequiredFields: []string{"name", "locationId"},
		},
		{
			Name:         "products.delete",
			Method:       http.MethodDelete,
			LocalPath:    "/api/products/:productId",
			UpstreamPath: "/products/:productId",
		},
		{
			Name:         "pricing.list",
			Method:       http.MethodGet,
			LocalPath:    "/api/pricing/:productId",
			UpstreamPath: "/products/:productId/price",
		},
		{
			Name:           "pricing.create",
			Method:         http.MethodPost,
			LocalPath:      "/api/pricing/:productId",
			UpstreamPath:   "/products/:productId/price",
			RequiredFields: []string{"name", "type", "currency", "amount"},
		},
		{
			Name:           "pricing.update",
			Method:         http.MethodPut,
			LocalPath:      "/api/pricing/:productId/:priceId",
			UpstreamPath:   "/products/:productId/price/:priceId",
			RequiredFields: []string{"name", "type", "currency", "amount"},
		},
		{
			Name:         "pricing.delete",
			Method:       http.MethodDelete,
			LocalPath:    "/api/pricing/:productId/:priceId",
			UpstreamPath: "/products/:productId/price/:priceId",
		},
		{
			Name:                "media.list",
			Method:              http.MethodGet,
			LocalPath:           "/api/media",
			UpstreamPath:        "/medias/files",
			UseLocationToken:    true,
			InjectLocationParam: "altId",
		},
		{
			Name:             "media.upload",
			Method:           http.MethodPost,
			LocalPath:        "/api/media",
			UpstreamPath:     "/medias/upload-file",
			UseLocationToken: true,
		},
		{
			Name:             "media.delete",
			Method:           http.MethodDelete,
			LocalPath:        "/api/media/:mediaId",
			UpstreamPath:     "/medias/:mediaId",
			UseLocationToken: true,
		},
		{
			Name:                "contacts.list",
			Method:              http.MethodGet,
			LocalPath:           "/api/contacts",
			UpstreamPath:        "/contacts/",
			InjectLocationParam: "locationId",
		},
		{
			Name:           "contacts.create",
			Method:         http.MethodPost,
			LocalPath:      "/api/contacts",
			UpstreamPath:   "/contacts/",
			RequiredFields: []string{"locationId"},
		},
		{
			Name:         "contacts.get",
			Method:       http.MethodGet,
			LocalPath:    "/api/contacts/:contactId",
			UpstreamPath: "/contacts/:contactId",
		},
		{
			Name:         "contacts.update",
			Method:       http.MethodPut,
			LocalPath:    "/api/contacts/:contactId",
			UpstreamPath: "/contacts/:contactId",
		},
		{
			Name:         "contacts.delete",
			Method:       http.MethodDelete,
			LocalPath:    "/api/contacts/:contactId",
			UpstreamPath: "/contacts/:contactId",
		},
		{
			Name:                "workflows.list",
			Method:              http.MethodGet,
			LocalPath:           "/api/workflows",
			UpstreamPath:        "/workflows/",
			InjectLocationParam: "locationId",
		},
	}
}
