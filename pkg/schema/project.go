package schema

// Seed holds the claims every session starts from, regardless of schema
type Seed struct {
	Email      string
	ID         string
	Collection string
}

// Project walks the field schema and builds the claim set persisted into the
// session token. The result always contains email, id and collection;
// session-persisted fields are copied from the user record on top of the
// seeds and may overwrite them. Subfields are visited exactly one level deep.
// Deterministic: the same schema and record always yield the same claims.
func Project(fields []Field, record map[string]any, seed Seed) map[string]any {
	claims := map[string]any{
		"email":      seed.Email,
		"id":         seed.ID,
		"collection": seed.Collection,
	}

	for _, field := range fields {
		if field.HasSubFields() {
			for _, sub := range field.Fields {
				if sub.SaveToJWT && sub.AffectsData() {
					claims[sub.Name] = record[sub.Name]
				}
			}
		}

		if field.SaveToJWT && field.AffectsData() {
			claims[field.Name] = record[field.Name]
		}
	}

	return claims
}
