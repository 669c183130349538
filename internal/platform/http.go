package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// HTTPClient implements Client against the gateway sidecar's internal REST
// API. The sidecar owns the actual chat-platform connection; this process
// only ever talks to it over localhost.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
	log     *zap.Logger
}

// NewHTTPClient creates a gateway client.
func NewHTTPClient(baseURL, token string, timeout time.Duration, log *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

type wireMessage struct {
	ID        int64       `json:"id"`
	ChannelID int64       `json:"channel_id"`
	GuildID   int64       `json:"guild_id"`
	AuthorID  int64       `json:"author_id"`
	Content   string      `json:"content"`
	Embeds    []wireEmbed `json:"embeds,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type wireEmbed struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Fields      []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"fields,omitempty"`
}

// FetchHistory returns up to limit messages strictly after the cursor,
// oldest first.
func (c *HTTPClient) FetchHistory(ctx context.Context, ref ChannelRef, after int64, limit int) ([]Message, error) {
	q := url.Values{}
	q.Set("after", strconv.FormatInt(after, 10))
	q.Set("limit", strconv.Itoa(limit))
	return c.fetchMessages(ctx, fmt.Sprintf("%s/channels/%d/messages?%s", c.baseURL, ref.ChannelID, q.Encode()))
}

// FetchRecent returns the channel's newest messages, up to limit.
func (c *HTTPClient) FetchRecent(ctx context.Context, ref ChannelRef, limit int) ([]Message, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("order", "recent")
	return c.fetchMessages(ctx, fmt.Sprintf("%s/channels/%d/messages?%s", c.baseURL, ref.ChannelID, q.Encode()))
}

func (c *HTTPClient) fetchMessages(ctx context.Context, u string) ([]Message, error) {
	var wire []wireMessage
	if err := c.getJSON(ctx, u, &wire); err != nil {
		return nil, err
	}

	messages := make([]Message, 0, len(wire))
	for _, wm := range wire {
		msg := Message{
			ID:        wm.ID,
			ChannelID: wm.ChannelID,
			GuildID:   wm.GuildID,
			AuthorID:  wm.AuthorID,
			Content:   wm.Content,
			Timestamp: wm.Timestamp,
		}
		for _, we := range wm.Embeds {
			embed := Embed{Title: we.Title, Description: we.Description}
			for _, f := range we.Fields {
				embed.Fields = append(embed.Fields, EmbedField{Name: f.Name, Value: f.Value})
			}
			msg.Embeds = append(msg.Embeds, embed)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// GetRoles returns the role ids the user holds in the guild.
func (c *HTTPClient) GetRoles(ctx context.Context, guildID, userID int64) ([]int64, error) {
	var roles []int64
	u := fmt.Sprintf("%s/guilds/%d/members/%d/roles", c.baseURL, guildID, userID)
	if err := c.getJSON(ctx, u, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// PostArtifact uploads rendered content to the channel.
func (c *HTTPClient) PostArtifact(ctx context.Context, ref ChannelRef, name string, content []byte) error {
	u := fmt.Sprintf("%s/channels/%d/artifacts?name=%s", c.baseURL, ref.ChannelID, url.QueryEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("failed to build artifact request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post artifact: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("gateway returned status %d posting artifact", resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return nil
}
