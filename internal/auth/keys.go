package auth

// Logical keys in the local key-value store
const (
	KeyAuthToken          = "auth_token"
	KeyTokenExpiry        = "token_expiry"
	KeyRefreshToken       = "refreshToken"
	KeyUserData           = "userData"
	KeyDeviceID           = "deviceId"
	KeyPushToken          = "fcm_token"
	KeyOnboarding         = "onboarding_completed"
	KeyUserType           = "userType"
	KeyDeviceRegistration = "device_registration"
)

var (
	tokenKeys = []string{KeyAuthToken, KeyTokenExpiry, KeyRefreshToken}

	// sessionKeys are removed by a local wipe next to the token store's own keys.
	// Device Identity keys and onboarding state are not listed.
	sessionKeys = []string{
		KeyUserData,
		KeyUserType,
		KeyDeviceRegistration,
	}
)
