package auth

import "github.com/isplink/portal/internal/model"

// Endpoints holds the path prefix of each role's endpoint family
type Endpoints struct {
	Customer string
	Staff    string
}

// For returns the routes of role. Unknown roles use the customer family.
func (e Endpoints) For(role model.Role) Routes {
	if role == model.RoleStaff {
		return Routes{prefix: e.Staff, role: role}
	}
	return Routes{prefix: e.Customer, role: model.RoleCustomer}
}

// Routes are the paths of one endpoint family
type Routes struct {
	prefix string
	role   model.Role
}

// SendOTP is the code request path of flow
func (r Routes) SendOTP(flow model.Flow) string { return r.prefix + "/" + string(flow) + "/send-otp" }

// VerifyOTP is the code verification path of flow
func (r Routes) VerifyOTP(flow model.Flow) string { return r.prefix + "/" + string(flow) + "/verify-otp" }

// Refresh is the refresh-token path
func (r Routes) Refresh() string { return r.prefix + "/refresh-token" }

// LoginStatus is the session check path
func (r Routes) LoginStatus() string { return r.prefix + "/login-status" }

// Logout is the logout path
func (r Routes) Logout() string { return r.prefix + "/logout" }

// Profile is the profile read and update path
func (r Routes) Profile() string { return r.prefix + "/profile" }

// DeviceRegister differs between families
func (r Routes) DeviceRegister() string {
	if r.role == model.RoleStaff {
		return r.prefix + "/register-device"
	}
	return r.prefix + "/device/register"
}
