package main

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ikagura/sffkit"
	"github.com/ikagura/sffkit/sff"
	"github.com/urfave/cli/v2"
)

const defaultDB = "previews.db"

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:  "version",
		Usage: "print the version",
	}
}

func newLogger(c *cli.Context) *log.Logger {
	logger := log.New(io.Discard, "", 0)
	if c.Bool("verbose") {
		logger.SetOutput(os.Stderr)
	}
	return logger
}

func outputPath(c *cli.Context, input, suffix string) string {
	if out := c.String("output"); out != "" {
		return out
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + suffix
}

func writePNG(m image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return png.Encode(f, m)
}

func extractAction(c *cli.Context, extract func(string) (image.Image, error), suffix string) error {
	if c.NArg() < 1 {
		cli.ShowSubcommandHelpAndExit(c, 1)
	}

	file := c.Args().First()
	m, err := extract(file)
	if err != nil {
		return cli.Exit(err, 1)
	}

	if err := writePNG(m, outputPath(c, file, suffix)); err != nil {
		return cli.Exit(err, 1)
	}

	return nil
}

func main() {
	app := cli.NewApp()

	app.Name = "sffkit"
	app.Usage = "SFF sprite archive preview utility"
	app.Version = "1.0.0"

	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			EnvVars: []string{"SFFKIT_DB"},
			Value:   filepath.Join(cwd, defaultDB),
			Usage:   "path to preview database",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "increase verbosity",
		},
	}

	output := &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "path of the PNG to write",
	}

	app.Commands = []*cli.Command{
		{
			Name:      "portrait",
			Usage:     "Extract the character select portrait from an archive",
			ArgsUsage: "FILE",
			Flags:     []cli.Flag{output},
			Action: func(c *cli.Context) error {
				return extractAction(c, sff.ExtractPortraitFile, "-portrait.png")
			},
		},
		{
			Name:      "preview",
			Usage:     "Extract the stage preview thumbnail from an archive",
			ArgsUsage: "FILE",
			Flags:     []cli.Flag{output},
			Action: func(c *cli.Context) error {
				return extractAction(c, sff.ExtractStagePreviewFile, "-preview.png")
			},
		},
		{
			Name:      "sprite",
			Usage:     "Extract a specific sprite by group and image number",
			ArgsUsage: "FILE GROUP IMAGE",
			Flags:     []cli.Flag{output},
			Action: func(c *cli.Context) error {
				if c.NArg() < 3 {
					cli.ShowSubcommandHelpAndExit(c, 1)
				}

				var group, imageNo uint16
				if _, err := fmt.Sscan(c.Args().Get(1), &group); err != nil {
					return cli.Exit(err, 1)
				}
				if _, err := fmt.Sscan(c.Args().Get(2), &imageNo); err != nil {
					return cli.Exit(err, 1)
				}

				file := c.Args().First()
				data, err := os.ReadFile(file)
				if err != nil {
					return cli.Exit(err, 1)
				}
				m, err := sff.ExtractSprite(data, group, imageNo)
				if err != nil {
					return cli.Exit(err, 1)
				}

				suffix := fmt.Sprintf("-%d-%d.png", group, imageNo)
				if err := writePNG(m, outputPath(c, file, suffix)); err != nil {
					return cli.Exit(err, 1)
				}

				return nil
			},
		},
		{
			Name:      "stage",
			Usage:     "Build a stage background archive from an ordinary image",
			ArgsUsage: "IMAGE FILE",
			Action: func(c *cli.Context) error {
				if c.NArg() < 2 {
					cli.ShowSubcommandHelpAndExit(c, 1)
				}

				f, err := os.Open(c.Args().First())
				if err != nil {
					return cli.Exit(err, 1)
				}
				m, _, err := image.Decode(f)
				f.Close()
				if err != nil {
					return cli.Exit(err, 1)
				}

				if err := sff.WriteStageBackgroundFile(m, c.Args().Get(1)); err != nil {
					return cli.Exit(err, 1)
				}

				return nil
			},
		},
		{
			Name:      "scan",
			Usage:     "Scan a content tree and cache previews for every archive",
			ArgsUsage: "DIRECTORY",
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowSubcommandHelpAndExit(c, 1)
				}

				m, err := sffkit.New(c.String("db"), newLogger(c))
				if err != nil {
					return cli.Exit(err, 1)
				}
				defer m.Close()

				if err := m.Scan(c.Args().First()); err != nil {
					return cli.Exit(err, 1)
				}

				return nil
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
