// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package updatemanifest

// GUpdateNamespace is the namespace of Chrome's update response.
const GUpdateNamespace = "http://www.google.com/update2/response"

// Chrome builds a gupdate document. It carries no signature; Chrome trusts
// the key embedded in the CRX instead.
type Chrome struct {
	AppID      string
	PackageURL string
	Version    string

	doc string
}

// Generate builds the gupdate document.
func (c *Chrome) Generate() error {
	if err := requireFields("chrome",
		[2]string{"app id", c.AppID},
		[2]string{"package url", c.PackageURL},
		[2]string{"version", c.Version},
	); err != nil {
		return err
	}

	root := element("gupdate", attr{"protocol", "2.0"}, attr{"xmlns", GUpdateNamespace})
	app := root.add(element("app", attr{"appid", c.AppID}))
	app.add(element("updatecheck", attr{"codebase", c.PackageURL}, attr{"version", c.Version}))

	c.doc = document(root)
	return nil
}

// Save writes or returns the document.
func (c *Chrome) Save(path string) (string, error) {
	if c.doc == "" {
		if err := c.Generate(); err != nil {
			return "", err
		}
	}
	return save(c.doc, path)
}
