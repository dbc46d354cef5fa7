package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const driveFilesURL = "https://www.googleapis.com/drive/v3/files"

// DriveAdapter discovers documents in a Google Drive folder using the
// oauth2 refresh-token flow. Fetch addresses are Drive file IDs.
type DriveAdapter struct {
	config *common.DriveSourceConfig
	logger arbor.ILogger
	client *http.Client
}

var _ interfaces.SourceAdapter = (*DriveAdapter)(nil)

// NewDriveAdapter creates a Google Drive source adapter
func NewDriveAdapter(config *common.DriveSourceConfig, logger arbor.ILogger) *DriveAdapter {
	oauthConfig := &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"https://www.googleapis.com/auth/drive.readonly"},
	}
	token := &oauth2.Token{RefreshToken: config.RefreshToken}

	return &DriveAdapter{
		config: config,
		logger: logger,
		client: oauthConfig.Client(context.Background(), token),
	}
}

// Name returns the adapter identifier
func (a *DriveAdapter) Name() string {
	return "gdrive"
}

// Validate checks credentials by listing a single file
func (a *DriveAdapter) Validate(ctx context.Context) error {
	if a.config.ClientID == "" || a.config.ClientSecret == "" || a.config.RefreshToken == "" {
		return fmt.Errorf("drive source requires client_id, client_secret, and refresh_token")
	}
	if a.config.FolderID == "" {
		return fmt.Errorf("drive source requires folder_id")
	}

	_, err := a.listFiles(ctx, 1)
	return err
}

// Count returns the number of discoverable documents, bounded by max
func (a *DriveAdapter) Count(ctx context.Context, max int) (int, error) {
	limit := max
	if limit <= 0 {
		limit = 1000
	}
	files, err := a.listFiles(ctx, limit)
	if err != nil {
		return 0, err
	}
	return len(files), nil
}

// Discover lists up to batchSize documents in the configured folder
func (a *DriveAdapter) Discover(ctx context.Context, batchSize int) ([]interfaces.DocumentInfo, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	files, err := a.listFiles(ctx, batchSize)
	if err != nil {
		return nil, err
	}

	docs := make([]interfaces.DocumentInfo, 0, len(files))
	for _, f := range files {
		docs = append(docs, interfaces.DocumentInfo{
			SourcePath: f.ID,
			Filename:   f.Name,
			MimeType:   f.MimeType,
			Size:       f.Size,
		})
	}
	return docs, nil
}

// Fetch downloads a file's content by Drive file ID
func (a *DriveAdapter) Fetch(ctx context.Context, sourcePath string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/%s?alt=media", driveFilesURL, url.PathEscape(sourcePath))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build drive request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("drive fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("drive fetch returned status %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

type driveFile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size,string"`
}

func (a *DriveAdapter) listFiles(ctx context.Context, pageSize int) ([]driveFile, error) {
	query := url.Values{}
	query.Set("q", fmt.Sprintf("'%s' in parents and trashed = false", a.config.FolderID))
	query.Set("pageSize", fmt.Sprintf("%d", pageSize))
	query.Set("fields", "files(id,name,mimeType,size)")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, driveFilesURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build drive list request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("drive list failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("drive list returned status %d: %s", resp.StatusCode, string(body))
	}

	var decoded struct {
		Files []driveFile `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode drive listing: %w", err)
	}
	return decoded.Files, nil
}
