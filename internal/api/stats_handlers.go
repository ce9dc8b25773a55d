package api

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/M0nstr1k/ds/internal/reports"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type statsView struct {
	UsersCount  int         `json:"users_count"`
	OrdersCount int         `json:"orders_count"`
	Revenue     int64       `json:"revenue"`
	LastOrders  []orderView `json:"last_orders"`
}

// GetStats возвращает сводную статистику для админов.
func (h *apiHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.deps.Orders.Stats(r.Context())
	if err != nil {
		log.Printf("GetStats: ошибка расчета статистики: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to calculate statistics")
		return
	}

	view := statsView{
		UsersCount:  stats.UsersCount,
		OrdersCount: stats.OrdersCount,
		Revenue:     stats.Revenue,
		LastOrders:  make([]orderView, 0, len(stats.LastOrders)),
	}
	for _, o := range stats.LastOrders {
		view.LastOrders = append(view.LastOrders, newOrderView(o))
	}
	writeJSONSuccess(w, "Statistics retrieved successfully", view)
}

// ExportOrders отдает все заказы файлом xlsx.
func (h *apiHandler) ExportOrders(w http.ResponseWriter, r *http.Request) {
	all, err := h.deps.Orders.Recent(r.Context(), 0)
	if err != nil {
		log.Printf("ExportOrders: ошибка получения заказов: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to load orders")
		return
	}

	f, err := reports.OrdersFile(all)
	if err != nil {
		log.Printf("ExportOrders: ошибка построения выгрузки: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to build report")
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("ExportOrders: ошибка закрытия книги: %v", err)
		}
	}()

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="orders_%s.xlsx"`, time.Now().Format("20060102_150405")))
	if err := f.Write(w); err != nil {
		log.Printf("ExportOrders: ошибка отправки файла: %v", err)
	}
}
