// Package pagehaven serves multi-tenant static sites from per-site
// subdomains with per-site access control.
//
// Every request is resolved to a site by its Host header, checked against
// the site's access policy and then either redirected to a gate page of
// the web app or answered with the stored object.
//
// # Key Components
//
//   - Dispatcher: framework-independent request state machine
//   - EvaluateAccess: pure access policy decision for public, password,
//     private and owner_only sites
//   - BuildGateRedirect: gate page URLs carrying the original URL
//   - NormalizePath, ContentType: request path to object path and MIME type
//   - SiteService: site, member and invite management
//   - ObjectService: object metadata plus blob storage, implementing ObjectReader
//   - SiteRepo, MetaDataRepo: persistence interfaces (PostgreSQL, SQLite)
//   - FileStorage: blob interface (filesystem, S3, remote stowry server)
//
// # Example Usage
//
//	objects, err := pagehaven.NewObjectService(db.ObjectRepo(), storage, pagehaven.ServiceConfig{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	dispatcher, err := pagehaven.NewDispatcher(db.SiteRepo(), objects, pagehaven.DispatcherConfig{
//	    BaseDomain: "example.com",
//	    WebBaseURL: "https://app.example.com",
//	})
//
//	resp, err := dispatcher.Dispatch(ctx, pagehaven.Request{
//	    Host: "blog.example.com",
//	    Path: "/posts/",
//	})
//
// See the http package for the HTTP server and the database package for
// repository backends.
package pagehaven
