package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (s Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.loggingMw, s.maxBytesMw)
	r.NotFoundHandler = s.loggingMw(s.notFoundHandler())
	r.MethodNotAllowedHandler = s.loggingMw(s.methodNotAllowedHandler())

	if s.Settings.UploadDir != "" {
		r.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.Settings.UploadDir))))
	}

	propertyAPI := r.PathPrefix("/property").Subrouter()
	propertyAPI.Use(s.authMw)
	propertyAPI.HandleFunc("/add", s.propertyAdd()).Methods(http.MethodPost)
	propertyAPI.HandleFunc("/nearby", s.propertyNearby()).Methods(http.MethodGet)
	propertyAPI.HandleFunc("/{propertyId}/visit", s.propertyVisit()).Methods(http.MethodPost)
	propertyAPI.HandleFunc("/{id}/mark-sold", s.propertyMarkSold()).Methods(http.MethodPatch)
	propertyAPI.HandleFunc("/{id}/sold", s.propertyDeleteSold()).Methods(http.MethodDelete)
	propertyAPI.HandleFunc("/{id}", s.propertyGet()).Methods(http.MethodGet)
	propertyAPI.HandleFunc("/{id}", s.propertyUpdate()).Methods(http.MethodPut)
	propertyAPI.HandleFunc("/{id}", s.propertyDelete()).Methods(http.MethodDelete)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/user/register", s.userRegister()).Methods(http.MethodPost)
	api.HandleFunc("/user/login", s.userLogin()).Methods(http.MethodPost)
	api.HandleFunc("/user/password/forgot", s.userPasswordForgot()).Methods(http.MethodPost)
	api.HandleFunc("/user/password/reset", s.userPasswordReset()).Methods(http.MethodPost)

	userAPI := api.PathPrefix("/user").Subrouter()
	userAPI.Use(s.authMw)
	userAPI.HandleFunc("/logout", s.userLogout()).Methods(http.MethodPost)
	userAPI.HandleFunc("/info", s.userInfo()).Methods(http.MethodGet)

	fcmAPI := api.PathPrefix("/fcm").Subrouter()
	fcmAPI.Use(s.authMw)
	fcmAPI.HandleFunc("/save-token", s.fcmSaveToken()).Methods(http.MethodPost)

	propertiesAPI := api.PathPrefix("/properties").Subrouter()
	propertiesAPI.Use(s.authMw)
	propertiesAPI.HandleFunc("/category/{category}", s.propertiesByCategory()).Methods(http.MethodGet)
	propertiesAPI.HandleFunc("/{mode}", s.propertiesList()).Methods(http.MethodGet)

	savedAPI := api.PathPrefix("/saved").Subrouter()
	savedAPI.Use(s.authMw)
	savedAPI.HandleFunc("", s.savedList()).Methods(http.MethodGet)
	savedAPI.HandleFunc("/{propertyId}", s.savedAdd()).Methods(http.MethodPost)
	savedAPI.HandleFunc("/{propertyId}", s.savedRemove()).Methods(http.MethodDelete)

	chatAPI := api.PathPrefix("/chat").Subrouter()
	chatAPI.Use(s.authMw)
	chatAPI.HandleFunc("/get-or-create", s.chatGetOrCreate()).Methods(http.MethodPost)
	chatAPI.HandleFunc("/send", s.chatSend()).Methods(http.MethodPost)
	chatAPI.HandleFunc("/history/list", s.chatHistory()).Methods(http.MethodGet)
	chatAPI.HandleFunc("/{chatId}/messages", s.chatMessages()).Methods(http.MethodGet)
	chatAPI.HandleFunc("/{chatId}/ws", s.chatSubscribe()).Methods(http.MethodGet)
	chatAPI.HandleFunc("/{chatId}", s.chatDelete()).Methods(http.MethodDelete)

	reminderAPI := api.PathPrefix("/reminders").Subrouter()
	reminderAPI.Use(s.authMw)
	reminderAPI.HandleFunc("", s.reminderAdd()).Methods(http.MethodPost)
	reminderAPI.HandleFunc("", s.reminderList()).Methods(http.MethodGet)

	notificationAPI := api.PathPrefix("/notifications").Subrouter()
	notificationAPI.Use(s.authMw)
	notificationAPI.HandleFunc("", s.notificationList()).Methods(http.MethodGet)
	notificationAPI.HandleFunc("/ws", s.notificationSubscribe()).Methods(http.MethodGet)

	serviceAPI := api.PathPrefix("/services").Subrouter()
	serviceAPI.Use(s.authMw)
	serviceAPI.HandleFunc("/book", s.serviceBook()).Methods(http.MethodPost)
	serviceAPI.HandleFunc("", s.serviceList()).Methods(http.MethodGet)

	return r
}
