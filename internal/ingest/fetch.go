// Package ingest retrieves raw observation CSV files from local paths, HTTP
// endpoints, and FTP archives, and hands them to the dataset loader.
package ingest

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jlaffaye/ftp"

	"github.com/hujanlab/rainforecast/internal/dataset"
	"github.com/hujanlab/rainforecast/internal/models"
)

// Fetcher pulls CSV datasets from a source URL or path.
type Fetcher struct {
	client *http.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch loads and cleans the dataset at source. Supported schemes are
// http(s):// with retry, ftp:// with anonymous login, and plain file paths.
func (f *Fetcher) Fetch(source string) ([]models.Observation, models.CleanReport, error) {
	u, err := url.Parse(source)
	if err == nil {
		switch u.Scheme {
		case "http", "https":
			return f.fetchHTTP(source)
		case "ftp":
			return f.fetchFTP(u)
		}
	}
	return dataset.LoadFile(source)
}

func (f *Fetcher) fetchHTTP(source string) ([]models.Observation, models.CleanReport, error) {
	var body []byte
	operation := func() error {
		resp, err := f.client.Get(source)
		if err != nil {
			return fmt.Errorf("fetch dataset: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(fmt.Errorf("fetch dataset: status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("fetch dataset: status %d", resp.StatusCode)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, models.CleanReport{}, err
	}

	return dataset.Load(bytes.NewReader(body))
}

func (f *Fetcher) fetchFTP(u *url.URL) ([]models.Observation, models.CleanReport, error) {
	host := u.Host
	if u.Port() == "" {
		host += ":21"
	}

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(30*time.Second))
	if err != nil {
		return nil, models.CleanReport{}, fmt.Errorf("ftp dial: %w", err)
	}
	defer conn.Quit()

	user, pass := "anonymous", "anonymous"
	if u.User != nil {
		user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			pass = p
		}
	}
	if err := conn.Login(user, pass); err != nil {
		return nil, models.CleanReport{}, fmt.Errorf("ftp login: %w", err)
	}

	resp, err := conn.Retr(u.Path)
	if err != nil {
		return nil, models.CleanReport{}, fmt.Errorf("ftp retr %s: %w", u.Path, err)
	}
	defer resp.Close()

	body, err := io.ReadAll(resp)
	if err != nil {
		return nil, models.CleanReport{}, fmt.Errorf("ftp read: %w", err)
	}

	return dataset.Load(bytes.NewReader(body))
}
