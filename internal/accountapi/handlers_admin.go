package accountapi

import (
	"encoding/json"
	"net/http"

	jmes "github.com/jmespath/go-jmespath"

	"accountgw/internal/shopify"
	"accountgw/pkg/apierr"
	"accountgw/pkg/gid"
	"accountgw/pkg/middleware"
)

const wishlistMaxItems = 250

const profilesQuery = `query {
  checkoutProfiles(first: 1, query: "is_published:true") {
    nodes { id }
  }
}`

const brandingQuery = `query GetBranding($checkoutProfileId: ID!) {
  checkoutBranding(checkoutProfileId: $checkoutProfileId) {
    designSystem {
      colors { global { accent brand success warning critical info decorative } }
      typography { primary { name } }
    }
    customizations {
      primaryButton { background text }
      logo { image { url } }
    }
  }
}`

// getBranding reshapes the checkout branding tree into the legacy
// shop.checkoutProfiles.edges form the frontend consumes. The upstream shape
// is deeply nested with every level optional, so the extraction uses
// JMESPath instead of a ladder of nil checks.
func (a *App) getBranding(w http.ResponseWriter, r *http.Request) {
	profiles, err := a.shop.AdminGraphQL(r.Context(), profilesQuery, nil)
	if err != nil {
		writeFailure(w, err)
		return
	}
	profileID, _ := searchString(profiles.Data, "checkoutProfiles.nodes[0].id")
	if profileID == "" {
		writeJSON(w, map[string]any{
			"success": true,
			"data":    map[string]any{"shop": map[string]any{"checkoutProfiles": map[string]any{"edges": []any{}}}},
		}, http.StatusOK)
		return
	}

	branding, err := a.shop.AdminGraphQL(r.Context(), brandingQuery, map[string]any{
		"checkoutProfileId": profileID,
	})
	if err != nil {
		writeFailure(w, err)
		return
	}

	var node map[string]any
	if b := searchAny(branding.Data, "checkoutBranding"); b != nil {
		node = map[string]any{
			"id": profileID,
			"branding": map[string]any{
				"primaryButton": searchAny(branding.Data, "checkoutBranding.customizations.primaryButton"),
				"colors":        map[string]any{"global": searchAny(branding.Data, "checkoutBranding.designSystem.colors.global")},
				"typography":    searchAny(branding.Data, "checkoutBranding.designSystem.typography"),
				"logo":          searchAny(branding.Data, "checkoutBranding.customizations.logo"),
			},
		}
	} else {
		node = map[string]any{"id": profileID, "branding": nil}
	}
	writeJSON(w, map[string]any{
		"success": true,
		"data": map[string]any{"shop": map[string]any{"checkoutProfiles": map[string]any{
			"edges": []any{map[string]any{"node": node}},
		}}},
	}, http.StatusOK)
}

func searchAny(raw json.RawMessage, path string) any {
	if raw == nil {
		return nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	res, err := jmes.Search(path, doc)
	if err != nil {
		return nil
	}
	return res
}

func searchString(raw json.RawMessage, path string) (string, bool) {
	if s, ok := searchAny(raw, path).(string); ok {
		return s, true
	}
	return "", false
}

const customerDeactivateMutation = `mutation customerUpdate($input: CustomerInput!) {
  customerUpdate(input: $input) {
    customer { id state }
    userErrors { field message }
  }
}`

func (a *App) postCustomerDeactivate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID string `json:"customerId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, apierr.Validation("invalid JSON body"))
		return
	}
	id, ok := gid.Customer(req.CustomerID)
	if !ok {
		writeFailure(w, apierr.Validation("customerId must be GID format: gid://shopify/Customer/{id}"))
		return
	}
	cust, _ := middleware.CustomerFrom(r.Context())
	if id != cust.ID {
		writeFailure(w, apierr.Forbidden("Forbidden: cannot deactivate another customer"))
		return
	}

	env, err := a.shop.AdminGraphQL(r.Context(), customerDeactivateMutation, map[string]any{
		"input": map[string]any{"id": id, "state": "DISABLED"},
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	var payload struct {
		CustomerUpdate struct {
			Customer   map[string]any      `json:"customer"`
			UserErrors []shopify.UserError `json:"userErrors"`
		} `json:"customerUpdate"`
	}
	if env.Data != nil {
		_ = json.Unmarshal(env.Data, &payload)
	}
	if msgs := shopify.JoinUserErrors(payload.CustomerUpdate.UserErrors); msgs != "" {
		writeFailure(w, &apierr.UpstreamError{Msg: msgs, CallerFault: true})
		return
	}
	writeJSON(w, map[string]any{"success": true, "customer": payload.CustomerUpdate.Customer}, http.StatusOK)
}

type metafieldInput struct {
	OwnerID   string `json:"ownerId"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Type      string `json:"type,omitempty"`
	Value     any    `json:"value"`
}

// isWishlistShaped reports whether a metafield carries the wishlist payload,
// either by its namespace/key pair or by its declared list type.
func isWishlistShaped(m metafieldInput) bool {
	return (m.Namespace == "wishlist" && m.Key == "products") || m.Type == "list.product_reference"
}

const metafieldsSetMutation = `mutation metafieldsSet($metafields: [MetafieldsSetInput!]!) {
  metafieldsSet(metafields: $metafields) {
    metafields { id namespace key value }
    userErrors { field message }
  }
}`

func (a *App) postMetafieldsSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Metafields []metafieldInput `json:"metafields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, apierr.Validation("invalid JSON body"))
		return
	}
	if len(req.Metafields) == 0 {
		writeFailure(w, apierr.Validation("metafields array required"))
		return
	}
	cust, _ := middleware.CustomerFrom(r.Context())
	for _, m := range req.Metafields {
		owner, ok := gid.Customer(m.OwnerID)
		if !ok {
			writeFailure(w, apierr.Validation("Each metafield must have ownerId as gid://shopify/Customer/{id}"))
			return
		}
		if owner != cust.ID {
			writeFailure(w, apierr.Forbidden("Forbidden: ownerId must match logged-in customer"))
			return
		}
	}
	for _, m := range req.Metafields {
		if !isWishlistShaped(m) {
			continue
		}
		arr, ok := wishlistArray(m.Value)
		if !ok {
			writeFailure(w, apierr.Validation("wishlist value must be valid JSON array"))
			return
		}
		if len(arr) > wishlistMaxItems {
			writeFailure(w, apierr.Validation("wishlist cannot exceed %d items", wishlistMaxItems))
			return
		}
	}

	input := make([]map[string]any, 0, len(req.Metafields))
	for _, m := range req.Metafields {
		typ := m.Type
		if typ == "" {
			typ = "json"
		}
		value, ok := m.Value.(string)
		if !ok {
			b, err := json.Marshal(m.Value)
			if err != nil {
				writeFailure(w, apierr.Validation("metafield value is not serializable"))
				return
			}
			value = string(b)
		}
		input = append(input, map[string]any{
			"ownerId":   m.OwnerID,
			"namespace": m.Namespace,
			"key":       m.Key,
			"type":      typ,
			"value":     value,
		})
	}

	env, err := a.shop.AdminGraphQL(r.Context(), metafieldsSetMutation, map[string]any{"metafields": input})
	if err != nil {
		writeFailure(w, err)
		return
	}
	var payload struct {
		MetafieldsSet struct {
			Metafields []map[string]any    `json:"metafields"`
			UserErrors []shopify.UserError `json:"userErrors"`
		} `json:"metafieldsSet"`
	}
	if env.Data != nil {
		_ = json.Unmarshal(env.Data, &payload)
	}
	if msgs := shopify.JoinUserErrors(payload.MetafieldsSet.UserErrors); msgs != "" {
		writeFailure(w, &apierr.UpstreamError{Msg: msgs, CallerFault: true})
		return
	}
	list := payload.MetafieldsSet.Metafields
	if list == nil {
		list = []map[string]any{}
	}
	writeJSON(w, map[string]any{"success": true, "metafields": list}, http.StatusOK)
}

// wishlistArray parses a wishlist value, which arrives either as a JSON
// array or as a string containing one.
func wishlistArray(v any) ([]any, bool) {
	switch t := v.(type) {
	case string:
		var arr []any
		if err := json.Unmarshal([]byte(t), &arr); err != nil {
			return nil, false
		}
		return arr, true
	case []any:
		return t, true
	default:
		return nil, false
	}
}

const metafieldLookupQuery = `query getMetafield($id: ID!) {
  metafield(id: $id) {
    id
    ownerId
  }
}`

const metafieldDeleteMutation = `mutation metafieldDelete($input: MetafieldDeleteInput!) {
  metafieldDelete(input: $input) {
    deletedId
    userErrors { field message }
  }
}`

func (a *App) postMetafieldsDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MetafieldID string `json:"metafieldId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, apierr.Validation("invalid JSON body"))
		return
	}
	id, ok := gid.Metafield(req.MetafieldID)
	if !ok {
		writeFailure(w, apierr.Validation("metafieldId must be GID format: gid://shopify/Metafield/{id}"))
		return
	}

	lookup, err := a.shop.AdminGraphQL(r.Context(), metafieldLookupQuery, map[string]any{"id": id})
	if err != nil {
		writeFailure(w, err)
		return
	}
	var found struct {
		Metafield *struct {
			ID      string `json:"id"`
			OwnerID string `json:"ownerId"`
		} `json:"metafield"`
	}
	if lookup.Data != nil {
		_ = json.Unmarshal(lookup.Data, &found)
	}
	if found.Metafield == nil {
		writeFailure(w, apierr.NotFound("Metafield not found"))
		return
	}
	cust, _ := middleware.CustomerFrom(r.Context())
	if found.Metafield.OwnerID != cust.ID {
		writeFailure(w, apierr.Forbidden("Forbidden: cannot delete another customer's metafield"))
		return
	}

	env, err := a.shop.AdminGraphQL(r.Context(), metafieldDeleteMutation, map[string]any{
		"input": map[string]any{"id": id},
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	var payload struct {
		MetafieldDelete struct {
			DeletedID  string              `json:"deletedId"`
			UserErrors []shopify.UserError `json:"userErrors"`
		} `json:"metafieldDelete"`
	}
	if env.Data != nil {
		_ = json.Unmarshal(env.Data, &payload)
	}
	if msgs := shopify.JoinUserErrors(payload.MetafieldDelete.UserErrors); msgs != "" {
		writeFailure(w, &apierr.UpstreamError{Msg: msgs, CallerFault: true})
		return
	}
	writeJSON(w, map[string]any{"success": true, "deletedId": payload.MetafieldDelete.DeletedID}, http.StatusOK)
}
