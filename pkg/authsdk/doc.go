/*
Package authsdk is a small client for the auth core's operational endpoints.

	client := authsdk.NewSDKClient("http://localhost:8080")

	// Liveness never fails while the process serves
	health, err := client.GetLiveness(ctx)

	// Readiness reports each dependency; ErrNotReady carries the body
	health, err = client.GetReadiness(ctx)
	if errors.Is(err, authsdk.ErrNotReady) {
		fmt.Println("store:", health.Checks.Store)
	}

The binary uses it for its healthcheck subcommand, so container probes need
no curl in the image.
*/
package authsdk
