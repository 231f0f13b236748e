package models

type User struct {
	ID          string `json:"id"`
	Phone       string `json:"phone"`
	CountryCode string `json:"countryCode"`
}

type Country struct {
	Name     string `json:"name"`
	Code     string `json:"code"`
	DialCode string `json:"dialCode"`
}

type Theme struct {
	IsDark bool `json:"isDark"`
}
