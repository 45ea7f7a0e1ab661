// Package printer defines printer configurations, their store interface,
// and the Registry that manages them.
//
// # Selection
//
// [Best] implements the printer selection algorithm. The candidate pool is
// the active printers, filtered by type when one is requested and by
// location and department, where printers without a location or
// department stay eligible as fallbacks. Each candidate is scored:
//
//	10000  is_default
//	 1000  location matches      100  location unassigned
//	  500  department matches     50  department unassigned
//	    +  priority
//
// The highest score wins and ties go to the lowest ID. When the pool is
// empty, the active printer with the highest priority is used.
//
// # Activation
//
// [Registry.SetActive] is the only way to change a printer's Active flag.
// Bringing a printer online publishes an event.KindPrinterActivated event;
// the queue processor subscribes to it and drains the printer's backlog.
package printer
