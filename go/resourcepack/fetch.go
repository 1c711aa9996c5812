package resourcepack

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

var versionManifestURL = "https://launchermeta.mojang.com/mc/game/version_manifest.json"

func jsonGrab(ctx context.Context, url string, val any) error {
	resp, err := get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return errors.Wrapf(json.NewDecoder(resp.Body).Decode(val), "decoding %s", url)
}

func get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s", url)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.Errorf("fetching %s: %s", url, resp.Status)
	}
	return resp, nil
}

// FetchClientJar downloads the vanilla client jar for version ("latest" for
// the newest release) to dest, unless dest already exists.
func FetchClientJar(ctx context.Context, dest, version string) error {
	if _, err := os.Stat(dest); err == nil {
		return nil
	}

	manifest := struct {
		Latest struct {
			Release string `json:"release"`
		} `json:"latest"`
		Versions []struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		}
	}{}
	if err := jsonGrab(ctx, versionManifestURL, &manifest); err != nil {
		return err
	}
	if version == "latest" {
		version = manifest.Latest.Release
	}
	versionURL := ""
	for _, v := range manifest.Versions {
		if v.ID == version {
			versionURL = v.URL
			break
		}
	}
	if versionURL == "" {
		return errors.Errorf("unable to find release version %s", version)
	}

	versionManifest := struct {
		Downloads map[string]struct {
			URL string `json:"url"`
		} `json:"downloads"`
	}{}
	if err := jsonGrab(ctx, versionURL, &versionManifest); err != nil {
		return err
	}
	clientJarURL := versionManifest.Downloads["client"].URL
	if clientJarURL == "" {
		return errors.Errorf("version %s has no client download", version)
	}

	slog.Info("downloading client jar", "version", version)
	resp, err := get(ctx, clientJarURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	size, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "downloading client jar")
	}
	slog.Info("downloaded client jar", "version", version, "MiB", float64(size)/1024/1024)
	return os.Rename(tmp, dest)
}
