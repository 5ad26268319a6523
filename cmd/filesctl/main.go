package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"

	"github.com/lap-market/marketplace-backend/api/clients"
	"github.com/urfave/cli/v2"
)

var flagServerAddr = &cli.StringFlag{
	Name:    "server-addr",
	Value:   "http://127.0.0.1:8080",
	Usage:   "marketplace file server address",
	EnvVars: []string{"MARKETPLACE_SERVER_ADDR"},
}
var flagContentType = &cli.StringFlag{
	Name:  "content-type",
	Usage: "content type of the upload, guessed from the extension when empty",
}
var flagImage = &cli.BoolFlag{
	Name:  "image",
	Usage: "upload through the image endpoint",
}
var flagOutput = &cli.StringFlag{
	Name:    "output",
	Aliases: []string{"o"},
	Usage:   "write the download to this path instead of stdout",
}
var flagMaxCount = &cli.IntFlag{
	Name:  "max-count",
	Value: 100,
	Usage: "maximum number of names to list",
}

func main() {
	app := &cli.App{
		Name:  "filesctl",
		Usage: "Manage objects on a marketplace file server",
		Flags: []cli.Flag{
			flagServerAddr,
		},
		Commands: []*cli.Command{
			{
				Name:      "upload",
				Usage:     "upload a local file",
				ArgsUsage: "<path>",
				Flags:     []cli.Flag{flagContentType, flagImage},
				Action: func(cCtx *cli.Context) error {
					filePath, err := requireArg(cCtx)
					if err != nil {
						return err
					}
					content, err := os.ReadFile(filePath)
					if err != nil {
						return fmt.Errorf("could not read %s: %w", filePath, err)
					}

					contentType := cCtx.String(flagContentType.Name)
					if contentType == "" {
						contentType = mime.TypeByExtension(filepath.Ext(filePath))
					}

					client := newClient(cCtx)
					if cCtx.Bool(flagImage.Name) {
						url, err := client.UploadImage(cCtx.Context, filepath.Base(filePath), contentType, content)
						if err != nil {
							return fmt.Errorf("image upload failed: %w", err)
						}
						fmt.Println(url)
						return nil
					}

					resp, err := client.Upload(cCtx.Context, filepath.Base(filePath), contentType, content)
					if err != nil {
						return fmt.Errorf("upload failed: %w", err)
					}
					return printJSON(resp)
				},
			},
			{
				Name:      "download",
				Usage:     "download an object",
				ArgsUsage: "<name>",
				Flags:     []cli.Flag{flagOutput},
				Action: func(cCtx *cli.Context) error {
					name, err := requireArg(cCtx)
					if err != nil {
						return err
					}
					data, err := newClient(cCtx).Download(cCtx.Context, name)
					if err != nil {
						return fmt.Errorf("download failed: %w", err)
					}
					if out := cCtx.String(flagOutput.Name); out != "" {
						return os.WriteFile(out, data, 0o644)
					}
					_, err = os.Stdout.Write(data)
					return err
				},
			},
			{
				Name:      "delete",
				Usage:     "delete an object",
				ArgsUsage: "<name>",
				Action: func(cCtx *cli.Context) error {
					name, err := requireArg(cCtx)
					if err != nil {
						return err
					}
					resp, err := newClient(cCtx).Delete(cCtx.Context, name)
					if err != nil {
						return fmt.Errorf("delete failed: %w", err)
					}
					return printJSON(resp)
				},
			},
			{
				Name:  "list",
				Usage: "list object names on the active backend",
				Flags: []cli.Flag{flagMaxCount},
				Action: func(cCtx *cli.Context) error {
					resp, err := newClient(cCtx).List(cCtx.Context, cCtx.Int(flagMaxCount.Name))
					if err != nil {
						return fmt.Errorf("list failed: %w", err)
					}
					for _, name := range resp.Files {
						fmt.Println(name)
					}
					return nil
				},
			},
			{
				Name:      "info",
				Usage:     "show object metadata",
				ArgsUsage: "<name>",
				Action: func(cCtx *cli.Context) error {
					name, err := requireArg(cCtx)
					if err != nil {
						return err
					}
					resp, err := newClient(cCtx).Info(cCtx.Context, name)
					if err != nil {
						return fmt.Errorf("info failed: %w", err)
					}
					return printJSON(resp)
				},
			},
			{
				Name:  "status",
				Usage: "show storage health and the active backend",
				Action: func(cCtx *cli.Context) error {
					client := newClient(cCtx)
					health, err := client.Health(cCtx.Context)
					if err != nil {
						return fmt.Errorf("health request failed: %w", err)
					}
					if err := printJSON(health); err != nil {
						return err
					}
					if !health.Healthy {
						return errors.New("storage is unhealthy")
					}
					return nil
				},
			},
			{
				Name:  "retry",
				Usage: "ask the server to probe its remote storage again",
				Action: func(cCtx *cli.Context) error {
					resp, err := newClient(cCtx).RetryRemote(cCtx.Context)
					if err != nil {
						return fmt.Errorf("retry failed: %w", err)
					}
					return printJSON(resp)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newClient(cCtx *cli.Context) *clients.FilesClient {
	return clients.NewFilesClient(cCtx.String(flagServerAddr.Name))
}

func requireArg(cCtx *cli.Context) (string, error) {
	if cCtx.NArg() != 1 {
		return "", fmt.Errorf("%s expects exactly one argument", cCtx.Command.Name)
	}
	return cCtx.Args().First(), nil
}

func printJSON(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
