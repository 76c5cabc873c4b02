package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

var httpClient = &http.Client{Timeout: 8 * time.Second}

// Client fetches datasheets from the external data API. Army-list
// management lives outside the engine; this client only maps API rows
// into Datasheets for match setup.
type Client struct {
	baseURL string

	mu         sync.RWMutex
	facCache   []Faction
	facFetched time.Time
}

const factionCacheTTL = 5 * time.Minute

func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	url := strings.TrimRight(c.baseURL, "/") + path
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	req.Header.Set("Accept", "application/json")
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return fmt.Errorf("api status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type Faction struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type apiUnit struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type apiWeapon struct {
	Name     string `json:"name"`
	Range    string `json:"range"`
	Type     string `json:"type"`
	Desc     string `json:"description"`
	Attacks  string `json:"attacks"`
	BSOrWS   string `json:"bs_ws"`
	Strength string `json:"strength"`
	AP       string `json:"ap"`
	Damage   string `json:"damage"`
}

type apiModel struct {
	Name string `json:"name"`
	Move string `json:"M"`
	T    string `json:"T"`
	Sv   string `json:"Sv"`
	Inv  string `json:"inv_sv"`
	W    string `json:"W"`
	Ld   string `json:"Ld"`
	OC   string `json:"OC"`
}

type apiKeyword struct {
	Keyword string `json:"keyword"`
}

type apiAbility struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Factions lists faction names, cached briefly to spare the data API.
func (c *Client) Factions(ctx context.Context) ([]Faction, error) {
	c.mu.RLock()
	if time.Since(c.facFetched) < factionCacheTTL && len(c.facCache) > 0 {
		out := append([]Faction(nil), c.facCache...)
		c.mu.RUnlock()
		return out, nil
	}
	c.mu.RUnlock()
	var res []Faction
	if err := c.get(ctx, "/api/factions", &res); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.facCache = res
	c.facFetched = time.Now()
	c.mu.Unlock()
	return res, nil
}

func toSlug(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "’", "")
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, "&", "and")
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "--", "-")
	return s
}

// Datasheets builds gameplay-ready datasheets for a faction by name.
func (c *Client) Datasheets(ctx context.Context, factionName string) ([]Datasheet, error) {
	slug := toSlug(factionName)
	var list []apiUnit
	if err := c.get(ctx, "/api/"+slug+"/units", &list); err != nil {
		return nil, err
	}
	out := make([]Datasheet, 0, len(list))
	for _, u := range list {
		var models []apiModel
		if err := c.get(ctx, "/api/"+slug+"/"+u.ID+"/models", &models); err != nil {
			continue // skip units that fail to load
		}
		ds := Datasheet{
			Name:       u.Name,
			Faction:    factionName,
			ModelCount: 1,
			MoveInches: 6, Toughness: 4, Save: 4, Wounds: 2,
			Leadership: 7, OC: 1, BaseMM: 32,
		}
		if len(models) > 0 {
			m := models[0]
			ds.MoveInches = parseMove(m.Move)
			ds.Toughness = mustAtoi(m.T, 4)
			ds.Save = parseSave(m.Sv)
			ds.Invuln = mustAtoi(m.Inv, 0)
			ds.Wounds = mustAtoi(m.W, 2)
			ds.Leadership = mustAtoi(m.Ld, 7)
			ds.OC = mustAtoi(m.OC, 1)
		}
		var weps []apiWeapon
		_ = c.get(ctx, "/api/"+slug+"/"+u.ID+"/weapons", &weps)
		for _, w := range weps {
			ds.Weapons = append(ds.Weapons,
				deriveWeaponRules(w.Name, w.Range, w.Type, w.Desc, w.Attacks, w.BSOrWS, w.Strength, w.AP, w.Damage))
		}
		if len(ds.Weapons) == 0 {
			ds.Weapons = fallbackWeapons()
		}
		var kws []apiKeyword
		_ = c.get(ctx, "/api/"+slug+"/"+u.ID+"/keywords", &kws)
		for _, k := range kws {
			if s := strings.TrimSpace(k.Keyword); s != "" {
				ds.Keywords = append(ds.Keywords, s)
			}
		}
		var abs []apiAbility
		_ = c.get(ctx, "/api/"+slug+"/"+u.ID+"/abilities", &abs)
		texts := make([]string, 0, len(abs))
		for _, a := range abs {
			texts = append(texts, a.Name+" "+a.Description)
		}
		ds.FNP = parseFNP(texts)
		out = append(out, ds)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	if len(out) == 0 {
		return nil, errors.New("no units found for faction")
	}
	return out, nil
}
