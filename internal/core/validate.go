package core

import (
	"errors"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Field-level messages shown next to the offending input.
const (
	MsgNameRequired           = "Retailer name is required."
	MsgPartnerIDRequired      = "Partner ID is required."
	MsgPartnerIDFormat        = "Partner ID must be exactly 10 digits."
	MsgPendingBalanceRequired = "Pending balance is required."
	MsgPendingBalanceNegative = "Pending balance cannot be negative."
	MsgAmountPositive         = "Amount must be a positive number greater than zero."
	MsgUserNameRequired       = "Name cannot be empty."
	MsgEmailInvalid           = "Email must be a valid address."
)

var partnerIDPattern = regexp.MustCompile(`^\d{10}$`)

// ValidationError carries one message per invalid field, keyed by the
// field's JSON name. It is returned, never panicked.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsValidationError unwraps err into a *ValidationError when it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

func newValidationError(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

type (
	// RetailerDraft is a create (empty ID) or full-replace candidate.
	RetailerDraft struct {
		ID                 string           `json:"id"`
		Name               string           `json:"name" validate:"required"`
		PartnerID          string           `json:"partnerId" validate:"required,partnerid"`
		PendingBalance     *decimal.Decimal `json:"pendingBalance" validate:"required,dgte0"`
		LastCollectionDate *Date            `json:"lastCollectionDate,omitempty"`
	}

	// TransactionDraft is a create (empty ID) or full-replace candidate.
	// Type and Time are constrained by the caller's input widgets.
	TransactionDraft struct {
		ID             string          `json:"id"`
		RetailerID     string          `json:"retailerId"`
		Type           TransactionType `json:"type"`
		Time           time.Time       `json:"time"`
		Amount         decimal.Decimal `json:"amount" validate:"dgt0"`
		CommissionRate decimal.Decimal `json:"commissionRate"`
	}

	// UserPatch lists the profile fields that may be updated. Nil fields are kept.
	UserPatch struct {
		Name              *string `json:"name,omitempty"`
		Email             *string `json:"email,omitempty" validate:"omitempty,email"`
		ProfilePictureURL *string `json:"profilePictureUrl,omitempty"`
		CompanyLogoURL    *string `json:"companyLogoUrl,omitempty"`
	}
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Decimals reach the rules below as their sign, which is exact at any
	// magnitude; converting to float64 would round tiny values to zero.
	v.RegisterCustomTypeFunc(func(f reflect.Value) interface{} {
		d, ok := f.Interface().(decimal.Decimal)
		if !ok {
			return nil
		}
		return d.Sign()
	}, decimal.Decimal{})
	_ = v.RegisterValidation("dgt0", func(fl validator.FieldLevel) bool {
		return fl.Field().Int() > 0
	})
	_ = v.RegisterValidation("dgte0", func(fl validator.FieldLevel) bool {
		return fl.Field().Int() >= 0
	})
	_ = v.RegisterValidation("partnerid", func(fl validator.FieldLevel) bool {
		return partnerIDPattern.MatchString(fl.Field().String())
	})
	return v
}

// retailerMessages maps field+tag to the message rendered for it.
var retailerMessages = map[string]string{
	"name.required":           MsgNameRequired,
	"partnerId.required":      MsgPartnerIDRequired,
	"partnerId.partnerid":     MsgPartnerIDFormat,
	"pendingBalance.required": MsgPendingBalanceRequired,
	"pendingBalance.dgte0":    MsgPendingBalanceNegative,
}

// Normalize trims the free-text fields.
func (d RetailerDraft) Normalize() RetailerDraft {
	d.ID = strings.TrimSpace(d.ID)
	d.Name = strings.TrimSpace(d.Name)
	d.PartnerID = strings.TrimSpace(d.PartnerID)
	return d
}

// Validate checks every field and reports all failures at once.
func (d RetailerDraft) Validate() error {
	d = d.Normalize()
	return collect(validate.Struct(d), retailerMessages)
}

// Retailer converts a validated draft into an entity.
func (d RetailerDraft) Retailer() Retailer {
	d = d.Normalize()
	r := Retailer{
		ID:        d.ID,
		Name:      d.Name,
		PartnerID: d.PartnerID,
	}
	if d.PendingBalance != nil {
		r.PendingBalance = *d.PendingBalance
	}
	if d.LastCollectionDate != nil && !d.LastCollectionDate.IsZero() {
		lc := *d.LastCollectionDate
		r.LastCollectionDate = &lc
	}
	return r
}

// DraftFromRetailer is the inverse of RetailerDraft.Retailer.
func DraftFromRetailer(r Retailer) RetailerDraft {
	pb := r.PendingBalance
	d := RetailerDraft{ID: r.ID, Name: r.Name, PartnerID: r.PartnerID, PendingBalance: &pb}
	if r.LastCollectionDate != nil {
		lc := *r.LastCollectionDate
		d.LastCollectionDate = &lc
	}
	return d
}

// Validate only checks the amount; other fields come from constrained inputs.
func (d TransactionDraft) Validate() error {
	return collect(validate.Struct(d), map[string]string{
		"amount.dgt0": MsgAmountPositive,
	})
}

func (d TransactionDraft) Transaction() Transaction {
	return Transaction{
		ID:             strings.TrimSpace(d.ID),
		RetailerID:     d.RetailerID,
		Type:           d.Type,
		Time:           d.Time.UTC(),
		Amount:         d.Amount,
		CommissionRate: d.CommissionRate,
	}
}

func (p UserPatch) Validate() error {
	fields := map[string]string{}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		fields["name"] = MsgUserNameRequired
	}
	if err := collect(validate.Struct(p), map[string]string{"email.email": MsgEmailInvalid}); err != nil {
		if ve, ok := AsValidationError(err); ok {
			for k, v := range ve.Fields {
				fields[k] = v
			}
		} else {
			return err
		}
	}
	return newValidationError(fields)
}

// Apply merges the patch into u: provided fields overwrite, others are retained.
func (p UserPatch) Apply(u User) User {
	if p.Name != nil {
		u.Name = strings.TrimSpace(*p.Name)
	}
	if p.Email != nil {
		u.Email = strings.TrimSpace(*p.Email)
	}
	if p.ProfilePictureURL != nil {
		u.ProfilePictureURL = *p.ProfilePictureURL
	}
	if p.CompanyLogoURL != nil {
		u.CompanyLogoURL = *p.CompanyLogoURL
	}
	return u
}

// collect turns validator errors into a ValidationError. Only the first
// failing rule per field is reported.
func collect(err error, messages map[string]string) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; seen {
			continue
		}
		msg, ok := messages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = fe.Field() + " is invalid"
		}
		fields[fe.Field()] = msg
	}
	return newValidationError(fields)
}
