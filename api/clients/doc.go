/*
Package clients provides a Go client for the marketplace file API.

	client := clients.NewFilesClient("http://localhost:8080")
	resp, err := client.Upload(ctx, "photo.jpg", "image/jpeg", data)
	if err != nil {
		return err
	}
	data, err = client.Download(ctx, resp.FileName)

Responses decode into the types of package api. A 404 from the server is
returned as an error wrapping ErrNotFound; other non-200 statuses carry the
server's error message.
*/
package clients
