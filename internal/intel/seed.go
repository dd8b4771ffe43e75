package intel

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

type seedFile struct {
	Campaigns []Campaign `json:"campaigns"`
}

// LoadCampaignSeed reads curated campaigns from a JSON file. Missing ids are
// derived from the family name so reloading the same file is stable.
func LoadCampaignSeed(path string) ([]Campaign, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read campaign seed: %w", err)
	}
	return ParseCampaignSeed(data)
}

// ParseCampaignSeed decodes and normalizes a campaign seed document
func ParseCampaignSeed(data []byte) ([]Campaign, error) {
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("decode campaign seed: %w", err)
	}

	for i := range seed.Campaigns {
		c := &seed.Campaigns[i]
		if c.FamilyName == "" {
			return nil, fmt.Errorf("campaign %d: family_name is required", i)
		}
		if c.ID == uuid.Nil {
			c.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("campaign:"+c.FamilyName))
		}
		switch c.Status {
		case CampaignActive, CampaignDeclining, CampaignDormant:
		case "":
			c.Status = CampaignActive
		default:
			return nil, fmt.Errorf("campaign %q: unknown status %q", c.FamilyName, c.Status)
		}

		for j := range c.Indicators {
			ind := &c.Indicators[j]
			if !ind.Type.Valid() {
				return nil, fmt.Errorf("campaign %q: unknown indicator type %q", c.FamilyName, ind.Type)
			}
			ind.Value = strings.ToLower(strings.TrimSpace(ind.Value))
			ind.CampaignID = c.ID
			if ind.ID == uuid.Nil {
				ind.ID = uuid.NewSHA1(c.ID, []byte(string(ind.Type)+":"+ind.Value))
			}
		}
	}
	return seed.Campaigns, nil
}
