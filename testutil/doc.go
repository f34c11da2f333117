// Package testutil holds test helpers shared across packages: component
// setup with automatic cleanup, polling, and upstream HTTP servers with
// known behaviour.
//
//	func TestBridge(t *testing.T) {
//	    testutil.T(t).Setup(server.NewComponent(srv))
//	    up := testutil.SizedServer(t)
//	    resp, _ := client.Fetch(ctx, up.URL+"?n=1024", nil)
//	    ...
//	}
package testutil
